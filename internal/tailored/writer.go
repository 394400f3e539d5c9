// Package tailored persists tailored resume sections to a plain text file.
package tailored

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/jobkit/jobtailor/internal/hackernews"
)

const DefaultPath = "tailored_resume.txt"

// Writer appends delimited sections to a single output file. Safe for
// concurrent use by the tailor agent.
type Writer struct {
	mu   sync.Mutex
	path string
}

func NewWriter(path string) *Writer {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}
	return &Writer{path: path}
}

func (w *Writer) Path() string {
	return w.path
}

// Append writes one tailored section for the given job, preceded by a header
// identifying the posting.
func (w *Writer) Append(job *hackernews.Job, section string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := fmt.Fprintf(file, "%s%s\n\n", header(job), strings.TrimSpace(section)); err != nil {
		return err
	}

	return nil
}

func header(job *hackernews.Job) string {
	var b strings.Builder

	b.WriteString("==== ")
	if job.Company != "" {
		b.WriteString(job.Company)
		b.WriteString(" / ")
	}
	if job.Title != "" {
		b.WriteString(job.Title)
	} else {
		b.WriteString(job.ID)
	}
	b.WriteString(" ====\n")

	if job.URL != "" {
		b.WriteString(job.URL)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	return b.String()
}
