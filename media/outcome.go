package media

// Outcome is the terminal result of one download.
type Outcome struct {
	Path string
	Err  error
}

// Succeeded builds a successful outcome.
func Succeeded(path string) Outcome { return Outcome{Path: path} }

// FailedWith builds a failed outcome.
func FailedWith(err error) Outcome { return Outcome{Err: err} }

func (o Outcome) OK() bool { return o.Err == nil }

// Reason is the human readable failure text, empty on success.
func (o Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
