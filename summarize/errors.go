package summarize

import "fmt"

var errEmptyResponse = fmt.Errorf("summarize: ollama returned an empty response")

func errStatus(code int) error {
	return fmt.Errorf("summarize: ollama responded with status %d", code)
}
