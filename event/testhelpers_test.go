package event

import (
	"os"

	json "github.com/goccy/go-json"
)

func marshalForTest(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}

func writeTestFile(path string, line []byte) error {
	return os.WriteFile(path, append(line, '\n'), 0o644)
}
