package model

// Event is a progress notification published while a pipeline runs. Each kind
// is its own type; Envelope flattens it into the single wire shape all
// subscribers consume.
type Event interface {
	Envelope() Envelope
}

// Envelope is the wire representation of any event. Error events deliberately
// share this shape with progress events.
type Envelope struct {
	Type       string   `json:"type"` // progress, complete or error
	Stage      string   `json:"stage"`
	Message    string   `json:"message"`
	Percent    int      `json:"percent"`
	PreviewURL string   `json:"previewUrl,omitempty"`
	FilesAdded []string `json:"filesAdded,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// StepStarted signals entry into a pipeline stage.
type StepStarted struct {
	Stage   string
	Message string
	Percent int
}

func (e StepStarted) Envelope() Envelope {
	return Envelope{Type: "progress", Stage: e.Stage, Message: e.Message, Percent: e.Percent}
}

// StepCompleted signals a stage finished, optionally carrying the files it
// produced.
type StepCompleted struct {
	Stage      string
	Message    string
	Percent    int
	FilesAdded []string
}

func (e StepCompleted) Envelope() Envelope {
	return Envelope{Type: "progress", Stage: e.Stage, Message: e.Message, Percent: e.Percent, FilesAdded: e.FilesAdded}
}

// PreviewReady signals the public preview URL is live.
type PreviewReady struct {
	Stage      string
	Message    string
	Percent    int
	PreviewURL string
}

func (e PreviewReady) Envelope() Envelope {
	return Envelope{Type: "progress", Stage: e.Stage, Message: e.Message, Percent: e.Percent, PreviewURL: e.PreviewURL}
}

// Completed signals the whole pipeline reached ready.
type Completed struct {
	PreviewURL string
	Message    string
}

func (e Completed) Envelope() Envelope {
	return Envelope{Type: "complete", Stage: string(ProjectStatusReady), Message: e.Message, Percent: 100, PreviewURL: e.PreviewURL}
}

// Failed signals the pipeline transitioned to error at the given stage.
type Failed struct {
	Stage   string
	Message string
}

func (e Failed) Envelope() Envelope {
	return Envelope{Type: "error", Stage: e.Stage, Message: e.Message, Error: e.Message}
}
