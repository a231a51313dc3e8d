package openai

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/vango-go/vai-recruiter/pkg/core"
)

// openaiError is the OpenAI error response format.
type openaiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Param   string `json:"param"`
		Code    string `json:"code"`
	} `json:"error"`
}

// parseError converts an OpenAI error response into a provider error.
func (p *Provider) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var oe openaiError
	if err := json.Unmarshal(body, &oe); err != nil || oe.Error.Message == "" {
		return core.NewProviderError(p.Name(), fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	err := core.NewProviderError(p.Name(), fmt.Errorf("status %d: %s: %s", resp.StatusCode, oe.Error.Type, oe.Error.Message))
	err.Code = oe.Error.Code
	err.Param = oe.Error.Param
	return err
}
