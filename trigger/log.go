package trigger

import (
	"bufio"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
)

// logEvaluation appends one evaluation to the trigger-evaluations log,
// best-effort: a logging failure must never fail the evaluation call.
func (e *Evaluator) logEvaluation(eval Evaluation) {
	if e.evalLogPath == "" {
		return
	}
	dir := filepath.Dir(e.evalLogPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	raw, err := json.Marshal(eval)
	if err != nil {
		return
	}
	f, err := os.OpenFile(e.evalLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	f.Write(raw)
	f.Write([]byte("\n"))
}

// readEvaluationLog tolerantly parses the evaluation log, skipping any
// malformed lines.
func readEvaluationLog(path string) ([]Evaluation, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []Evaluation
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Evaluation
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		entries = append(entries, ev)
	}
	return entries, nil
}
