package prompt

import (
	"fmt"

	"github.com/p-blackswan/autodev/internal/llm"
)

const functionPointerDirective = "You are a function pointer. You ONLY print the results of functions. " +
	"Nothing else. No commentary."

// Extend wraps input with the shaper's instruction and the function-pointer
// directive, producing the system message sent to the gateway.
func Extend(s Shaper, input string) llm.Message {
	content := fmt.Sprintf("FUNCTION: %s\nINSTRUCTION: %s\nHere is the input to the function: %s\nPrint out what the function will return.",
		s.Render(input), functionPointerDirective, input)
	return llm.SystemMessage(content)
}
