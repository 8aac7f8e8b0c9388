package documents

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/Kcheesee/StarCitiSalesAgent/internal/pkg/errors"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/envutil"
)

type Kind string

const (
	KindTranscript Kind = "transcript"
	KindFleetGuide Kind = "fleet-guide"

	defaultDocumentsDir = "./generated"
)

// ParseKind accepts the kind names used in download URLs.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindTranscript:
		return KindTranscript, nil
	case KindFleetGuide, "fleet_guide", "fleetguide":
		return KindFleetGuide, nil
	default:
		return "", fmt.Errorf("%w: unknown document kind %q", pkgerrors.ErrInvalidArgument, s)
	}
}

func (k Kind) FileName() string {
	switch k {
	case KindFleetGuide:
		return "fleet-guide.png"
	default:
		return "transcript.txt"
	}
}

func (k Kind) ContentType() string {
	switch k {
	case KindFleetGuide:
		return "image/png"
	default:
		return "text/plain; charset=utf-8"
	}
}

// FileStore keeps artifacts on local disk under Dir/<conversation id>/.
type FileStore struct {
	Dir string
}

// NewFileStore uses dir, then DOCUMENTS_DIR, then ./generated.
func NewFileStore(dir string) *FileStore {
	if strings.TrimSpace(dir) == "" {
		dir = envutil.String("DOCUMENTS_DIR", defaultDocumentsDir)
	}
	return &FileStore{Dir: dir}
}

// Save writes data atomically and returns the stored path.
func (s *FileStore) Save(conversationID uuid.UUID, kind Kind, data []byte) (string, error) {
	dir := filepath.Join(s.Dir, conversationID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create documents dir: %w", err)
	}
	final := filepath.Join(dir, kind.FileName())
	tmp, err := os.CreateTemp(dir, "."+kind.FileName()+".*")
	if err != nil {
		return "", fmt.Errorf("create temp document: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close document: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return "", fmt.Errorf("store document: %w", err)
	}
	return final, nil
}

// Read loads a stored artifact. A missing file maps to ErrNotFound.
func (s *FileStore) Read(path string) ([]byte, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: document not generated", pkgerrors.ErrNotFound)
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: document missing", pkgerrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return data, nil
}
