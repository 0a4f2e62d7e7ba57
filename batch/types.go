package batch

import (
	"fmt"
	"sort"
	"strings"
)

// ProgressFunc reports batch submission progress. Called after each
// successful item, never before the first or on failure.
type ProgressFunc[TResult any] func(completed, total int, result TResult)

// TaskError captures failure context for a single batch item: its original
// index, the item itself, and the underlying error.
type TaskError[TItem any] struct {
	Index int
	Item  TItem
	Err   error
}

// Result holds the outcome of a batch dispatch: successes in original item
// order, failures with full context.
type Result[TItem, TResult any] struct {
	Results []TResult
	Errors  []TaskError[TItem]
}

// Error wraps the per-item failures from a batch dispatch, with a
// categorized summary message.
type Error[TItem any] struct {
	Errors []TaskError[TItem]
}

func (e *Error[TItem]) Error() string {
	if len(e.Errors) == 0 {
		return "batch dispatch failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("batch dispatch failed: item %d: %v", e.Errors[0].Index, e.Errors[0].Err)
	}

	counts := make(map[string]int)
	for _, te := range e.Errors {
		counts[te.Err.Error()]++
	}
	type summary struct {
		msg   string
		count int
	}
	var summaries []summary
	for msg, count := range counts {
		summaries = append(summaries, summary{msg, count})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].count > summaries[j].count })

	var parts []string
	for _, s := range summaries {
		if s.count == 1 {
			parts = append(parts, fmt.Sprintf("%q (1 item)", s.msg))
		} else {
			parts = append(parts, fmt.Sprintf("%q (%d items)", s.msg, s.count))
		}
	}
	return fmt.Sprintf("batch dispatch failed: %d items failed with %d error types: %s",
		len(e.Errors), len(counts), strings.Join(parts, ", "))
}

func (e *Error[TItem]) Unwrap() []error {
	out := make([]error, len(e.Errors))
	for i, te := range e.Errors {
		out[i] = te.Err
	}
	return out
}
