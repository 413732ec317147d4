package transcriber

import (
	"errors"
	"fmt"
)

var errAPIKeyRequired = errors.New("OpenAI API key required")

func errUnsupportedProvider(provider string) error {
	return fmt.Errorf("unsupported provider: %s", provider)
}
