package fileio

// Kind names a command variant in logs and journal entries.
type Kind string

const (
	KindCopyFile          Kind = "copy_file"
	KindWriteTrials       Kind = "write_trials"
	KindWriteJSON         Kind = "write_json"
	KindWriteMovementData Kind = "write_movement_data"
	KindQuit              Kind = "quit"
)

// Command is a unit of deferred file work. The set of variants is closed.
type Command interface {
	Kind() Kind
	// Target is the file the command writes, or empty for Quit.
	Target() string
	command()
}

// CopyFile copies Source to Destination byte for byte.
type CopyFile struct {
	Source      string
	Destination string
}

// WriteTrials writes a delimiter-separated results file with a header row,
// replacing any previous content.
type WriteTrials struct {
	Path   string
	Header []string
	Rows   [][]string
}

// WriteJSON writes Data as an indented JSON document, replacing any previous
// content. A nil map is written as {}.
type WriteJSON struct {
	Path string
	Data map[string]any
}

// WriteMovementData appends movement samples to a CSV file. The header,
// "frame" followed by Columns, is written only when the file is new.
type WriteMovementData struct {
	Path    string
	Object  string
	Columns []string
	Samples [][]float64
}

// Quit stops the worker after every command queued before it has run.
type Quit struct{}

func (CopyFile) Kind() Kind          { return KindCopyFile }
func (WriteTrials) Kind() Kind       { return KindWriteTrials }
func (WriteJSON) Kind() Kind         { return KindWriteJSON }
func (WriteMovementData) Kind() Kind { return KindWriteMovementData }
func (Quit) Kind() Kind              { return KindQuit }

func (c CopyFile) Target() string          { return c.Destination }
func (c WriteTrials) Target() string       { return c.Path }
func (c WriteJSON) Target() string         { return c.Path }
func (c WriteMovementData) Target() string { return c.Path }
func (Quit) Target() string                { return "" }

func (CopyFile) command()          {}
func (WriteTrials) command()       {}
func (WriteJSON) command()         {}
func (WriteMovementData) command() {}
func (Quit) command()              {}
