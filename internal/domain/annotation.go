package domain

// Annotation type tags. The tag selects which optional fields are meaningful;
// unknown tags are carried through untouched so older servers never strip
// newer client annotations.
const (
	AnnotationText  = "text"
	AnnotationRect  = "rect"
	AnnotationImage = "image"
	AnnotationPath  = "path"
)

// PathPoint is one point of a freehand path annotation, in unscaled
// page-local coordinates.
type PathPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Annotation is a tagged variant over text, rectangle, image, and freehand
// path markup. IDs are client-generated. Page is a 1-based ordinal; X/Y
// anchor the annotation in unscaled page-local units.
type Annotation struct {
	ID   string  `json:"id"`
	Type string  `json:"type"`
	Page int     `json:"page"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`

	// text
	Text     string  `json:"text,omitempty"`
	FontSize float64 `json:"fontSize,omitempty"`

	// text, rect, path
	Color string `json:"color,omitempty"`

	// rect, image
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`

	// image (data URL payload)
	ImageData string `json:"imageData,omitempty"`

	// path
	StrokeWidth float64     `json:"strokeWidth,omitempty"`
	Points      []PathPoint `json:"points,omitempty"`
}

// SessionMeta describes the document currently bound to a session.
// Last-writer-wins on each upload. UploadedAt is Unix milliseconds.
type SessionMeta struct {
	FileName   string `json:"fileName,omitempty"`
	UploadedAt int64  `json:"uploadedAt,omitempty"`
}
