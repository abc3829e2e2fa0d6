package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxErrorBody bounds how much of an error response is kept in a Failure
const maxErrorBody = 512

// PostJSON sends payload as JSON and decodes a 2xx response into out.
// It returns nil on success and a Failure otherwise; it never retries.
func PostJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload, out interface{}) *Failure {
	body, err := json.Marshal(payload)
	if err != nil {
		return &Failure{Kind: FailureRejected, Message: fmt.Sprintf("marshal request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &Failure{Kind: FailureRejected, Message: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return &Failure{Kind: FailureUnreachable, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Failure{Kind: FailureUnreachable, StatusCode: resp.StatusCode, Message: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(respBody)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return &Failure{Kind: FailureRejected, StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &Failure{Kind: FailureRejected, StatusCode: resp.StatusCode, Message: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}

// Result converts a PostJSON outcome and extracted text into a ChatResult.
// Empty text counts as a rejected response.
func Result(failure *Failure, text string) ChatResult {
	if failure != nil {
		return ChatResult{Failure: failure}
	}
	if text == "" {
		return Rejected(http.StatusOK, "response contained no text")
	}
	return Success(text)
}

// GetJSON performs a GET and decodes a 2xx response into out
func GetJSON(ctx context.Context, client *http.Client, url string, out interface{}) *Failure {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &Failure{Kind: FailureRejected, Message: fmt.Sprintf("build request: %v", err)}
	}

	resp, err := client.Do(req)
	if err != nil {
		return &Failure{Kind: FailureUnreachable, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return &Failure{Kind: FailureRejected, StatusCode: resp.StatusCode, Message: resp.Status}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Failure{Kind: FailureRejected, StatusCode: resp.StatusCode, Message: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}
