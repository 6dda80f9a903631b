package overlay

import "errors"

var (
	ErrDecode           = errors.New("overlay: image decode failed")
	ErrCrossOrigin      = errors.New("overlay: image host does not allow export")
	ErrGenerate         = errors.New("overlay: artifact generation failed")
	ErrClipboard        = errors.New("overlay: clipboard unavailable")
	ErrUpload           = errors.New("overlay: upload failed")
	ErrNoOverlay        = errors.New("overlay: no sticker selected")
	ErrNoBase           = errors.New("overlay: no base image")
	ErrInvalidTransform = errors.New("overlay: invalid transform")
)

var userText = []struct {
	err  error
	text string
}{
	{ErrCrossOrigin, "This image's host does not allow exporting it. Try another post."},
	{ErrDecode, "Could not load the image. Please try another one."},
	{ErrUpload, "Failed to upload image. Please try again."},
	{ErrClipboard, "Clipboard is not available here. Opening the image instead."},
	{ErrNoOverlay, "Pick a sticker first."},
	{ErrNoBase, "Load a post with an image first."},
	{ErrInvalidTransform, "The sticker position is invalid. Move it and try again."},
	{ErrGenerate, "Failed to generate image. Please try again."},
}

// UserMessage converts any failure from this package into the text shown
// to the user. Unknown errors fall back to the generic generation message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	for _, u := range userText {
		if errors.Is(err, u.err) {
			return u.text
		}
	}
	return "Failed to generate image. Please try again."
}
