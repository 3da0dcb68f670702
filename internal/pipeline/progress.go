package pipeline

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/shaiso/legisync/internal/domain"
)

const defaultProgressBuffer = 64

// defaultDrainTimeout — сколько stop из Attach ждёт обработки буфера.
const defaultDrainTimeout = 500 * time.Millisecond

// Progress рассылает события прогресса подписчикам.
//
// Доставка best-effort: если буфер подписчика заполнен, событие для него
// отбрасывается, а run продолжает работу. Процент монотонно не убывает.
type Progress struct {
	mu      sync.Mutex
	subs    map[int]chan domain.ProgressEvent
	nextID  int
	buffer  int
	drain   time.Duration
	last    float64
	dropped int
	closed  bool
}

// NewProgress создаёт Progress. buffer <= 0 — 64 события на подписчика.
func NewProgress(buffer int) *Progress {
	if buffer <= 0 {
		buffer = defaultProgressBuffer
	}
	return &Progress{
		subs:   make(map[int]chan domain.ProgressEvent),
		buffer: buffer,
		drain:  defaultDrainTimeout,
	}
}

// SetDrainTimeout задаёт, сколько stop из Attach ждёт обработки уже
// полученных событий. d <= 0 — не ждать.
func (p *Progress) SetDrainTimeout(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drain = max(d, 0)
}

// Subscribe регистрирует подписчика.
// Канал закрывается при Close или вызове cancel.
func (p *Progress) Subscribe() (<-chan domain.ProgressEvent, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan domain.ProgressEvent, p.buffer)
	if p.closed {
		close(ch)
		return ch, func() {}
	}

	id := p.nextID
	p.nextID++
	p.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if c, ok := p.subs[id]; ok {
				delete(p.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// Attach запускает fn для каждого события в отдельной горутине.
//
// Возвращаемая функция отписывает fn и ждёт обработки уже полученных
// событий не дольше drain timeout. Оставшиеся после этого события
// отбрасываются и учитываются в Dropped; вызов fn, начатый до истечения
// срока, завершается в фоне.
func (p *Progress) Attach(fn func(domain.ProgressEvent)) func() {
	ch, cancel := p.Subscribe()
	done := make(chan struct{})
	var abandoned atomic.Bool

	go func() {
		defer close(done)
		for ev := range ch {
			if abandoned.Load() {
				p.countDropped()
				continue
			}
			fn(ev)
		}
	}()

	return func() {
		cancel()

		p.mu.Lock()
		drain := p.drain
		p.mu.Unlock()

		timer := time.NewTimer(drain)
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
			abandoned.Store(true)
		}
	}
}

func (p *Progress) countDropped() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropped++
}

// Emit публикует событие стадии stage с долей fraction (0..1) внутри её диапазона.
func (p *Progress) Emit(stage domain.ProcessingStatus, fraction float64, message string) domain.ProgressEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	percent := p.last
	if r, ok := domain.RangeOf(stage); ok {
		percent = max(p.last, r.Scale(fraction))
	}
	p.last = percent

	ev := domain.ProgressEvent{
		Stage:   stage,
		Percent: percent,
		Message: message,
		At:      time.Now(),
	}

	if p.closed {
		return ev
	}
	for _, ch := range p.subs {
		select {
		case ch <- ev:
		default:
			p.dropped++
		}
	}
	return ev
}

// Last возвращает последний опубликованный процент.
func (p *Progress) Last() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Dropped возвращает число событий, отброшенных из-за заполненных буферов.
func (p *Progress) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Close закрывает каналы всех подписчиков. Повторный вызов — no-op.
func (p *Progress) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	for id, ch := range p.subs {
		delete(p.subs, id)
		close(ch)
	}
}
