package frontier

import (
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
)

var extensionKinds = map[string]domain.ContentKind{
	".html": domain.ContentKindHTML,
	".htm":  domain.ContentKindHTML,
	".php":  domain.ContentKindHTML,
	".asp":  domain.ContentKindHTML,
	".aspx": domain.ContentKindHTML,
	".jsp":  domain.ContentKindHTML,
	".pdf":  domain.ContentKindPDF,
	".doc":  domain.ContentKindDoc,
	".docx": domain.ContentKindDoc,
	".odt":  domain.ContentKindDoc,
	".rtf":  domain.ContentKindDoc,
	".txt":  domain.ContentKindText,
	".md":   domain.ContentKindText,
}

var mediaKinds = map[string]domain.ContentKind{
	"text/html":             domain.ContentKindHTML,
	"application/xhtml+xml": domain.ContentKindHTML,
	"application/pdf":       domain.ContentKindPDF,
	"application/msword":    domain.ContentKindDoc,
	"application/rtf":       domain.ContentKindDoc,
	"text/plain":            domain.ContentKindText,
	"text/markdown":         domain.ContentKindText,

	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": domain.ContentKindDoc,
	"application/vnd.oasis.opendocument.text":                                 domain.ContentKindDoc,
}

// KindOf guesses the content kind of rawURL from its path extension.
// Extensionless paths are pages. Unknown extensions (images, archives)
// return false and are never fetched.
func KindOf(rawURL string) (domain.ContentKind, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if ext == "" {
		return domain.ContentKindHTML, true
	}
	kind, ok := extensionKinds[ext]
	return kind, ok
}

// KindOfMediaType maps a Content-Type header to a content kind.
func KindOfMediaType(contentType string) (domain.ContentKind, bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	kind, ok := mediaKinds[mediaType]
	return kind, ok
}

// KindFilter is the set of content kinds a job collects. An empty filter
// accepts every kind.
type KindFilter map[domain.ContentKind]struct{}

// NewKindFilter validates raw filter values.
func NewKindFilter(raw []string) (KindFilter, error) {
	f := make(KindFilter, len(raw))
	for _, r := range raw {
		kind, err := domain.ParseContentKind(strings.ToLower(strings.TrimSpace(r)))
		if err != nil {
			return nil, err
		}
		f[kind] = struct{}{}
	}
	return f, nil
}

// Allows reports whether kind is collected.
func (f KindFilter) Allows(kind domain.ContentKind) bool {
	if len(f) == 0 {
		return true
	}
	_, ok := f[kind]
	return ok
}

// Decision is what the crawler does with a URL before fetching it.
type Decision int

const (
	// Ignore drops the URL without fetching.
	Ignore Decision = iota
	// Collect fetches the URL as a content item.
	Collect
	// DiscoverOnly fetches an excluded page only to follow its links.
	DiscoverOnly
)

// Decide applies the filter before any network call. canDescend is true when
// the URL's depth still allows following links.
func (f KindFilter) Decide(rawURL string, canDescend bool) Decision {
	kind, ok := KindOf(rawURL)
	if !ok {
		return Ignore
	}
	if f.Allows(kind) {
		return Collect
	}
	if kind == domain.ContentKindHTML && canDescend {
		return DiscoverOnly
	}
	return Ignore
}
