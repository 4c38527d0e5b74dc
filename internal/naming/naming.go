package naming

import (
	"strings"
	"time"

	"github.com/ncruces/go-strftime"

	"livecap/internal/services"
	"livecap/internal/textutil"
)

// DefaultTemplate is used when no file name template is configured.
const DefaultTemplate = "{streamer}%Y-%m-%dT%H_%M_%S"

// Formatter builds capture file names from a template holding {streamer} and
// {title} placeholders plus strftime directives.
type Formatter struct {
	Template string
}

// New returns a formatter for template, falling back to DefaultTemplate.
func New(template string) Formatter {
	if strings.TrimSpace(template) == "" {
		template = DefaultTemplate
	}
	return Formatter{Template: template}
}

// Base substitutes the placeholders and sanitizes the result without
// expanding time directives.
func (f Formatter) Base(streamer, title string) (string, error) {
	tmpl := f.Template
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultTemplate
	}
	filled := strings.NewReplacer("{streamer}", streamer, "{title}", title).Replace(tmpl)
	base, err := textutil.ValidFileName(filled)
	if err != nil {
		return "", services.Wrap(services.ErrNaming, "naming", "sanitize", "template "+tmpl, err)
	}
	return base, nil
}

// Format returns the final file name (without extension) for a capture that
// starts at the given time.
func (f Formatter) Format(streamer, title string, at time.Time) (string, error) {
	base, err := f.Base(streamer, title)
	if err != nil {
		return "", err
	}
	return strftime.Format(base, at), nil
}
