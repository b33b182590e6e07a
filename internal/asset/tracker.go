// Package asset tracks the images a user has attached to a publish dialog
// and their upload lifecycle.
//
// Each selected file becomes an Asset that starts in the uploading state
// before any network call resolves, so the client can render a spinner
// immediately. An asset leaves the uploading state exactly once, into either
// uploaded (RemotePath set) or failed. Failed assets stay visible until the
// user removes them; nothing is retried or evicted automatically.
//
// Tracker is not thread-safe. It is owned by a dialog controller, which
// serializes access (see the dialog package).
package asset

import (
	"github.com/google/uuid"
)

// DefaultMaxAssets is the default bound on the image pool for one dialog.
const DefaultMaxAssets = 5

// Asset is a single user-selected image and its upload lifecycle metadata.
type Asset struct {
	// ID is a client-generated identifier, stable for the lifetime of the
	// asset regardless of upload outcome.
	ID string `json:"id"`

	// Name is the original file name, kept for display only. Upload
	// reconciliation is positional, never by name.
	Name string `json:"name"`

	// Data holds the raw file bytes. The tracker owns them exclusively
	// until the upload resolves.
	Data []byte `json:"-"`

	// RemotePath is the server-assigned storage path. Set if and only if
	// the upload succeeded.
	RemotePath string `json:"remotePath,omitempty"`

	// Uploading is true while the upload is unresolved.
	Uploading bool `json:"uploading"`

	// Failed is true once the upload has failed. Never true while
	// Uploading is true.
	Failed bool `json:"failed"`

	// FailReason is a human-readable upload error, set only when Failed.
	FailReason string `json:"failReason,omitempty"`
}

// File is a user-selected file to be added to the tracker.
type File struct {
	Name string
	Data []byte
}

// Outcome is the resolution of one asset's upload.
// Exactly one of RemotePath and Err is meaningful.
type Outcome struct {
	RemotePath string
	Err        error
}

// Tracker holds the set of assets for one publish dialog.
type Tracker struct {
	assets []Asset
	max    int
}

// NewTracker creates an empty tracker bounded to max assets.
// If max is not positive, DefaultMaxAssets is used.
func NewTracker(max int) *Tracker {
	if max <= 0 {
		max = DefaultMaxAssets
	}
	return &Tracker{max: max}
}

// Add registers the given files as new assets in uploading state and returns
// the accepted assets in submission order. Files beyond the pool cap are
// silently truncated.
func (t *Tracker) Add(files []File) []Asset {
	room := t.max - len(t.assets)
	if room <= 0 {
		return nil
	}
	if len(files) > room {
		files = files[:room]
	}

	added := make([]Asset, 0, len(files))
	for _, f := range files {
		a := Asset{
			ID:        uuid.NewString(),
			Name:      f.Name,
			Data:      f.Data,
			Uploading: true,
		}
		t.assets = append(t.assets, a)
		added = append(added, a)
	}
	return added
}

// Remove deletes the asset with the given id regardless of its upload state.
// Returns false if no such asset exists. If the asset was uploading, its
// in-flight result is simply discarded when it eventually resolves, because
// MarkResolved ignores unknown ids.
func (t *Tracker) Remove(id string) bool {
	for i, a := range t.assets {
		if a.ID == id {
			t.assets = append(t.assets[:i], t.assets[i+1:]...)
			return true
		}
	}
	return false
}

// MarkResolved transitions matching assets out of the uploading state using
// the given id-to-outcome mapping. Outcomes for ids no longer tracked are
// discarded (the remove-while-uploading case). Assets not present in the
// mapping are left untouched.
func (t *Tracker) MarkResolved(outcomes map[string]Outcome) {
	for i := range t.assets {
		a := &t.assets[i]
		if !a.Uploading {
			continue
		}
		out, ok := outcomes[a.ID]
		if !ok {
			continue
		}
		a.Uploading = false
		if out.Err != nil {
			a.Failed = true
			a.FailReason = out.Err.Error()
			continue
		}
		a.RemotePath = out.RemotePath
		// Upload complete; the raw bytes are no longer needed.
		a.Data = nil
	}
}

// Assets returns a copy of all tracked assets in insertion order.
func (t *Tracker) Assets() []Asset {
	if len(t.assets) == 0 {
		return nil
	}
	out := make([]Asset, len(t.assets))
	copy(out, t.assets)
	return out
}

// Len returns the number of tracked assets.
func (t *Tracker) Len() int {
	return len(t.assets)
}

// UploadedPaths returns the remote paths of all successfully uploaded assets
// in insertion order.
func (t *Tracker) UploadedPaths() []string {
	var paths []string
	for _, a := range t.assets {
		if a.RemotePath != "" {
			paths = append(paths, a.RemotePath)
		}
	}
	return paths
}

// AnyUploading reports whether any tracked asset is still uploading.
func (t *Tracker) AnyUploading() bool {
	for _, a := range t.assets {
		if a.Uploading {
			return true
		}
	}
	return false
}

// AnyFailed reports whether any tracked asset has a failed upload.
func (t *Tracker) AnyFailed() bool {
	for _, a := range t.assets {
		if a.Failed {
			return true
		}
	}
	return false
}
