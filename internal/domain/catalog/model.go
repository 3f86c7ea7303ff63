package catalog

// SliceRef identifies one image in a phase by its 1-based position.
type SliceRef struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Path  string `json:"-"`
}

// imageExtensions lists the recognized slice file extensions (lowercase).
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}
