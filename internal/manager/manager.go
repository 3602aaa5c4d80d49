package manager

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"prodmanager/internal/model"
	"prodmanager/internal/notify"
	"prodmanager/internal/preview"
)

const (
	formCreate = "create"
	formEdit   = "edit"
)

// Observer recebe os eventos de cada transição bem-sucedida ou rejeitada.
type Observer interface {
	ProductCreated()
	ProductUpdated()
	ProductDeleted()
	ValidationFailed(form string)
}

type Options struct {
	Seed            []model.Product
	Previews        preview.Store
	NotificationTTL time.Duration
	Observer        Observer
	Logger          *logrus.Entry
}

// Manager é dono da lista de produtos, do rascunho de cadastro e do buffer
// de edição de uma sessão. Todas as transições passam pelo mutex.
type Manager struct {
	mu       sync.Mutex
	products []model.Product
	draft    model.Draft
	edit     *model.EditBuffer
	nextID   int

	previews preview.Store
	banner   *notify.Banner
	obs      Observer
	log      *logrus.Entry
}

func New(opts Options) *Manager {
	m := &Manager{
		products: append([]model.Product(nil), opts.Seed...),
		draft:    model.NewDraft(),
		nextID:   1,
		previews: opts.Previews,
		banner:   notify.NewBanner(opts.NotificationTTL),
		obs:      opts.Observer,
		log:      opts.Logger,
	}
	if m.previews == nil {
		m.previews = preview.NewMemoryStore()
	}
	if m.obs == nil {
		m.obs = nopObserver{}
	}
	if m.log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		m.log = logrus.NewEntry(l)
	}
	for _, p := range m.products {
		if p.ID >= m.nextID {
			m.nextID = p.ID + 1
		}
	}
	m.banner.OnClose = func(n notify.Notification, reason notify.Reason) {
		m.log.WithFields(logrus.Fields{
			"message": n.Message,
			"reason":  reason,
		}).Debug("Notificação encerrada")
	}
	return m
}

func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := State{
		Products: append([]model.Product(nil), m.products...),
		Draft:    m.draft,
	}
	if m.edit != nil {
		buf := *m.edit
		s.Edit = &buf
	}
	if n, ok := m.banner.Current(); ok {
		s.Notification = &n
	}
	return s
}

func (m *Manager) Products() []model.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Product(nil), m.products...)
}

func (m *Manager) SetDraft(name, price string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.draft.Name = name
	m.draft.Price = price
}

func (m *Manager) SelectDraftImage(u preview.Upload) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, err := m.previews.Create(u)
	if err != nil {
		return fmt.Errorf("imagem do cadastro: %w", err)
	}
	old := m.draft.ImageURL
	m.draft.ImageURL = h.URL()
	m.release(old)
	return nil
}

func (m *Manager) SubmitCreate() (model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name, price, err := validate(formCreate, m.draft.Name, m.draft.Price)
	if err != nil {
		m.reject(formCreate, err)
		return model.Product{}, err
	}

	p := model.Product{
		ID:       m.nextID,
		Name:     name,
		Price:    price,
		ImageURL: m.draft.ImageURL,
	}
	if p.ImageURL == "" {
		p.ImageURL = model.PlaceholderImage
	}
	m.nextID++
	m.products = append(m.products, p)
	m.draft = model.NewDraft()

	m.obs.ProductCreated()
	m.log.WithFields(logrus.Fields{"id": p.ID, "name": p.Name}).Info("Produto adicionado")
	m.banner.Show(MsgCreated, notify.Success)
	return p, nil
}

func (m *Manager) StartEdit(id int) (model.EditBuffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		m.banner.Show(MsgNotFound, notify.Error)
		return model.EditBuffer{}, notFound(id)
	}
	prev := m.edit
	buf := model.NewEditBuffer(m.products[i])
	m.edit = &buf
	if prev != nil {
		m.release(prev.ImageURL)
	}
	return buf, nil
}

func (m *Manager) SetEdit(name, price string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.edit == nil {
		return ErrNotEditing
	}
	m.edit.Name = name
	m.edit.Price = price
	return nil
}

func (m *Manager) SelectEditImage(u preview.Upload) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.edit == nil {
		return ErrNotEditing
	}
	h, err := m.previews.Create(u)
	if err != nil {
		return fmt.Errorf("imagem da edição: %w", err)
	}
	old := m.edit.ImageURL
	m.edit.ImageURL = h.URL()
	m.release(old)
	return nil
}

func (m *Manager) SubmitEdit() (model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.edit == nil {
		return model.Product{}, ErrNotEditing
	}
	name, price, err := validate(formEdit, m.edit.Name, m.edit.Price)
	if err != nil {
		m.reject(formEdit, err)
		return model.Product{}, err
	}

	i := m.indexOf(m.edit.ID)
	if i < 0 {
		// o produto sumiu enquanto o modal estava aberto
		buf := m.edit
		m.edit = nil
		m.release(buf.ImageURL)
		m.banner.Show(MsgNotFound, notify.Error)
		return model.Product{}, notFound(buf.ID)
	}

	old := m.products[i]
	p := model.Product{
		ID:       old.ID,
		Name:     name,
		Price:    price,
		ImageURL: m.edit.ImageURL,
	}
	m.products[i] = p
	m.edit = nil
	if old.ImageURL != p.ImageURL {
		m.release(old.ImageURL)
	}

	m.obs.ProductUpdated()
	m.log.WithFields(logrus.Fields{"id": p.ID, "name": p.Name}).Info("Produto atualizado")
	m.banner.Show(MsgUpdated, notify.Success)
	return p, nil
}

// OwnsPreview diz se o handle pertence ao rascunho, ao buffer de edição ou a
// algum produto desta sessão.
func (m *Manager) OwnsPreview(h preview.Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.referenced(h.URL())
}

// CloseModal descarta o buffer de edição sem alterar a lista.
func (m *Manager) CloseModal() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.edit == nil {
		return
	}
	buf := m.edit
	m.edit = nil
	m.release(buf.ImageURL)
}

func (m *Manager) Delete(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		m.banner.Show(MsgNotFound, notify.Error)
		return notFound(id)
	}
	removed := m.products[i]
	m.products = append(m.products[:i:i], m.products[i+1:]...)

	if m.edit != nil && m.edit.ID == id {
		buf := m.edit
		m.edit = nil
		m.release(buf.ImageURL)
	}
	m.release(removed.ImageURL)

	m.obs.ProductDeleted()
	m.log.WithField("id", id).Info("Produto excluído")
	m.banner.Show(MsgDeleted, notify.Success)
	return nil
}

func (m *Manager) DismissNotification() {
	m.banner.Close()
}

// Close libera todos os previews ainda referenciados e cancela o timer da
// notificação. O gerenciador não deve ser usado depois.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.banner.Stop()
	urls := []string{m.draft.ImageURL}
	if m.edit != nil {
		urls = append(urls, m.edit.ImageURL)
	}
	for _, p := range m.products {
		urls = append(urls, p.ImageURL)
	}
	for _, u := range urls {
		if h, ok := preview.HandleFromURL(u); ok {
			m.previews.Revoke(h)
		}
	}
	m.products = nil
	m.edit = nil
	m.draft = model.NewDraft()
}

func (m *Manager) reject(form string, err error) {
	m.obs.ValidationFailed(form)
	m.log.WithFields(logrus.Fields{"form": form, "error": err}).Debug("Formulário rejeitado")
	m.banner.Show(MsgMissingFields, notify.Error)
}

func (m *Manager) indexOf(id int) int {
	for i, p := range m.products {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// release revoga o preview de url se nada mais o referencia.
func (m *Manager) release(url string) {
	h, ok := preview.HandleFromURL(url)
	if !ok || m.referenced(url) {
		return
	}
	m.previews.Revoke(h)
}

func (m *Manager) referenced(url string) bool {
	if m.draft.ImageURL == url {
		return true
	}
	if m.edit != nil && m.edit.ImageURL == url {
		return true
	}
	for _, p := range m.products {
		if p.ImageURL == url {
			return true
		}
	}
	return false
}

func validate(form, name, price string) (string, float64, error) {
	name = strings.TrimSpace(name)
	price = strings.TrimSpace(price)

	var missing []string
	if name == "" {
		missing = append(missing, "name")
	}
	var value float64
	if price == "" {
		missing = append(missing, "price")
	} else {
		d, err := decimal.NewFromString(price)
		if err != nil || d.IsNegative() {
			missing = append(missing, "price")
		} else if value = d.InexactFloat64(); math.IsInf(value, 0) || math.IsNaN(value) {
			// "1e400" é decimal válido mas não cabe em float64
			value = 0
			missing = append(missing, "price")
		}
	}
	if len(missing) > 0 {
		return "", 0, &ValidationError{Form: form, Missing: missing}
	}
	return name, value, nil
}

type nopObserver struct{}

func (nopObserver) ProductCreated() {}
func (nopObserver) ProductUpdated() {}
func (nopObserver) ProductDeleted() {}
func (nopObserver) ValidationFailed(string) {}
