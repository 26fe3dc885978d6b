package models

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// assetNamespace scopes the name-based UUIDs derived for media assets.
var assetNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("clipdeck:media-asset"))

// AssetID identifies a media asset in the catalog
type AssetID uuid.UUID

// NilAssetID is the zero identifier, meaning "nothing selected"
var NilAssetID AssetID

// String returns the canonical UUID form
func (id AssetID) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether id is the zero identifier
func (id AssetID) IsNil() bool {
	return id == NilAssetID
}

// ParseAssetID parses the canonical UUID form produced by String
func ParseAssetID(s string) (AssetID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NilAssetID, err
	}
	return AssetID(u), nil
}

// MediaAsset represents one playable file exposed by the media server
type MediaAsset struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Modified string `json:"modified"`
}

// ID returns a stable identifier derived from the whole record. Each field
// is written with its length in front, so distinct (name, size, modified)
// tuples encode to distinct inputs whatever bytes the fields contain.
func (a MediaAsset) ID() AssetID {
	var b strings.Builder
	for _, field := range []string{a.Name, strconv.FormatInt(a.Size, 10), a.Modified} {
		b.WriteString(strconv.Itoa(len(field)))
		b.WriteByte(':')
		b.WriteString(field)
	}
	return AssetID(uuid.NewSHA1(assetNamespace, []byte(b.String())))
}

// LegacyKey returns the name+size key older clients selected by.
// It is not collision free and is only used for display.
func (a MediaAsset) LegacyKey() string {
	return a.Name + strconv.FormatInt(a.Size, 10)
}

// VideoPath returns the server-relative URL the asset streams from
func (a MediaAsset) VideoPath() string {
	return VideoPath(a.Name)
}

// ModifiedTime parses the modification timestamp.
// The server may send RFC 3339 or the HTTP date format.
func (a MediaAsset) ModifiedTime() (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, a.Modified); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC1123, a.Modified)
}

// VideoPath builds the streaming path for a file name
func VideoPath(name string) string {
	return "/api/video/" + url.PathEscape(name)
}

// MediaListResponse is the envelope returned by GET /api/media
type MediaListResponse struct {
	Data  []MediaAsset `json:"data"`
	Error *string      `json:"error"`
}
