package preview

import (
	"errors"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const urlPrefix = "/previews/"

var ErrEmptyUpload = errors.New("arquivo vazio")

// Handle identifica um arquivo escolhido pelo usuário enquanto a sessão existir.
type Handle string

func (h Handle) URL() string {
	return urlPrefix + string(h)
}

// HandleFromURL extrai o handle de uma URL de preview. Retorna false para
// qualquer outra URL (ex.: o placeholder).
func HandleFromURL(url string) (Handle, bool) {
	if !strings.HasPrefix(url, urlPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(url, urlPrefix)
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return Handle(id), true
}

type Upload struct {
	Filename string
	Data     []byte
}

type Preview struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Store interface {
	Create(u Upload) (Handle, error)
	Open(h Handle) (Preview, bool)
	Revoke(h Handle)
}

// MemoryStore mantém os previews em memória. OnChange recebe o total de
// previews ativos após cada criação ou revogação.
type MemoryStore struct {
	mu       sync.RWMutex
	previews map[Handle]Preview
	OnChange func(active int)
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{previews: make(map[Handle]Preview)}
}

func (s *MemoryStore) Create(u Upload) (Handle, error) {
	if len(u.Data) == 0 {
		return "", ErrEmptyUpload
	}
	h := Handle(uuid.NewString())
	p := Preview{
		Filename:    u.Filename,
		ContentType: mimetype.Detect(u.Data).String(),
		Data:        u.Data,
	}

	s.mu.Lock()
	s.previews[h] = p
	n := len(s.previews)
	s.mu.Unlock()

	s.notify(n)
	return h, nil
}

func (s *MemoryStore) Open(h Handle) (Preview, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.previews[h]
	return p, ok
}

func (s *MemoryStore) Revoke(h Handle) {
	s.mu.Lock()
	_, ok := s.previews[h]
	delete(s.previews, h)
	n := len(s.previews)
	s.mu.Unlock()

	if ok {
		s.notify(n)
	}
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.previews)
}

func (s *MemoryStore) notify(n int) {
	if s.OnChange != nil {
		s.OnChange(n)
	}
}
