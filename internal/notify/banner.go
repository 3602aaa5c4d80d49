package notify

import (
	"sync"
	"time"
)

const DefaultTTL = 3 * time.Second

type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
)

type Notification struct {
	Message string    `json:"message"`
	Kind    Kind      `json:"type"`
	ShownAt time.Time `json:"shownAt"`
}

type Reason string

const (
	ClosedByUser Reason = "user"
	Expired      Reason = "timeout"
)

// Banner exibe no máximo uma notificação por vez. Uma nova notificação
// substitui a atual e cancela o timer dela, então um timer antigo nunca
// apaga uma notificação mais nova.
type Banner struct {
	mu      sync.Mutex
	ttl     time.Duration
	current *Notification
	timer   *time.Timer
	gen     uint64

	// OnClose é chamado fora do lock quando a notificação some por ação do
	// usuário ou por timeout. Substituições não disparam OnClose.
	OnClose func(n Notification, reason Reason)
}

func NewBanner(ttl time.Duration) *Banner {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Banner{ttl: ttl}
}

func (b *Banner) Show(message string, kind Kind) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopTimer()
	b.gen++
	gen := b.gen
	b.current = &Notification{Message: message, Kind: kind, ShownAt: time.Now()}
	b.timer = time.AfterFunc(b.ttl, func() { b.expire(gen) })
}

func (b *Banner) Close() {
	b.mu.Lock()
	n := b.clear()
	b.mu.Unlock()

	if n != nil {
		b.closed(*n, ClosedByUser)
	}
}

func (b *Banner) Current() (Notification, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return Notification{}, false
	}
	return *b.current, true
}

// Stop cancela o timer pendente sem disparar OnClose.
func (b *Banner) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clear()
}

func (b *Banner) expire(gen uint64) {
	b.mu.Lock()
	if gen != b.gen {
		b.mu.Unlock()
		return
	}
	n := b.clear()
	b.mu.Unlock()

	if n != nil {
		b.closed(*n, Expired)
	}
}

func (b *Banner) clear() *Notification {
	b.stopTimer()
	b.gen++
	n := b.current
	b.current = nil
	return n
}

func (b *Banner) stopTimer() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *Banner) closed(n Notification, reason Reason) {
	if b.OnClose != nil {
		b.OnClose(n, reason)
	}
}
