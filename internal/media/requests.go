package media

// ConcatenateRequest joins First and Second into Output.
type ConcatenateRequest struct {
	First  string `json:"first"`
	Second string `json:"second"`
	Output string `json:"output"`
}

// Outputs returns the files the operation writes.
func (r ConcatenateRequest) Outputs() []string { return []string{r.Output} }

// SplitRequest cuts Input at At seconds into Before and After.
type SplitRequest struct {
	Input  string  `json:"input"`
	Before string  `json:"before"`
	After  string  `json:"after"`
	At     float64 `json:"at"`
}

// Outputs returns the files the operation writes.
func (r SplitRequest) Outputs() []string { return []string{r.Before, r.After} }

// TransitionRequest merges First and Second with a transition.
type TransitionRequest struct {
	First      string     `json:"first"`
	Second     string     `json:"second"`
	Output     string     `json:"output"`
	Transition Transition `json:"transition"`
	// Duration of the transition in seconds.
	Duration float64 `json:"duration"`
	// Offset is when the transition starts, in seconds from the start of First.
	// When nil it is derived from the duration of First.
	Offset *float64 `json:"offset,omitempty"`
}

// Outputs returns the files the operation writes.
func (r TransitionRequest) Outputs() []string { return []string{r.Output} }

// ImageOverlayRequest places Image over Input at (X, Y).
type ImageOverlayRequest struct {
	Input  string `json:"input"`
	Output string `json:"output"`
	Image  string `json:"image"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	// Opacity in (0, 1) blends the image; 0 or 1 and above keep it opaque.
	Opacity float64 `json:"opacity"`
	Width   *int    `json:"width,omitempty"`
	Height  *int    `json:"height,omitempty"`
}

// Outputs returns the files the operation writes.
func (r ImageOverlayRequest) Outputs() []string { return []string{r.Output} }

// SolidColorRequest renders one Width x Height frame of Color.
type SolidColorRequest struct {
	// Color is anything ffmpeg understands: "red", "#FF0000", "0xFF0000".
	Color  string `json:"color"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Output string `json:"output"`
}

// Outputs returns the files the operation writes.
func (r SolidColorRequest) Outputs() []string { return []string{r.Output} }

// LUTRequest color grades Input with LUT.
type LUTRequest struct {
	Input  string `json:"input"`
	Output string `json:"output"`
	LUT    LUT    `json:"lut"`
}

// Outputs returns the files the operation writes.
func (r LUTRequest) Outputs() []string { return []string{r.Output} }

// TextOverlayRequest draws Text centered on Input.
type TextOverlayRequest struct {
	Input    string `json:"input"`
	Output   string `json:"output"`
	FontFile string `json:"font_file"`
	Text     string `json:"text"`
	FontSize int    `json:"font_size"`
}

// Outputs returns the files the operation writes.
func (r TextOverlayRequest) Outputs() []string { return []string{r.Output} }

// VideoMetadata is what Probe reports about the first video stream.
type VideoMetadata struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	// Duration in seconds; 0 when the stream does not report one.
	Duration float64 `json:"duration"`
}
