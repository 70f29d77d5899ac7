package validator

import "fmt"

// Result is the outcome of a validation run.
type Result struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues"`
}

type collector struct {
	issues []string
}

func (c *collector) add(format string, args ...interface{}) {
	c.issues = append(c.issues, fmt.Sprintf(format, args...))
}

func (c *collector) result() *Result {
	issues := c.issues
	if issues == nil {
		issues = []string{}
	}
	return &Result{Valid: len(issues) == 0, Issues: issues}
}

// Merge combines results, keeping issue order.
func Merge(results ...*Result) *Result {
	c := &collector{}
	for _, r := range results {
		if r == nil {
			continue
		}
		c.issues = append(c.issues, r.Issues...)
	}
	return c.result()
}
