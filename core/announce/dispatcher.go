package announce

import (
	"context"
	"net/mail"
	"sync"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

// Dispatcher delivers announcements to their audience in the background.
// Delivery failures are logged and dropped; they never reach the caller.
type Dispatcher struct {
	ch      chan Announcement
	usrSvc  user.ServiceInterface
	mailSvc core.EmailService
	logger  core.Logger
	wg      sync.WaitGroup

	mu     sync.Mutex // guards closed and sends on ch
	closed bool
}

func NewDispatcher(usrSvc user.ServiceInterface, mailSvc core.EmailService, logger core.Logger) *Dispatcher {
	return &Dispatcher{
		ch:      make(chan Announcement, 64),
		usrSvc:  usrSvc,
		mailSvc: mailSvc,
		logger:  logger,
	}
}

// Start launches the delivery worker.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for ann := range d.ch {
			d.deliver(ann)
		}
	}()
}

// Stop drains pending deliveries and waits for the worker to exit.
// Dispatches arriving after Stop are dropped. Safe to call more than once.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.ch)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// Dispatch queues an announcement for delivery without ever blocking the
// caller; a full queue or a stopped dispatcher drops the notification with
// a log line.
func (d *Dispatcher) Dispatch(ann Announcement) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.logger.Warn("dispatcher stopped, dropping announcement", "announcement", ann.ID)
		return
	}
	select {
	case d.ch <- ann:
	default:
		d.logger.Warn("announcement delivery queue full, dropping", "announcement", ann.ID)
	}
}

func (d *Dispatcher) deliver(ann Announcement) {
	for _, channel := range ann.Channels {
		switch channel {
		case ChannelEmail:
			d.deliverEmail(ann)
		default:
			d.logger.Warn("unknown announcement channel", "channel", channel, "announcement", ann.ID)
		}
	}
}

func (d *Dispatcher) deliverEmail(ann Announcement) {
	recipients, err := d.audience(ann)
	if err != nil {
		d.logger.Error("resolving announcement audience", "announcement", ann.ID, "error", err)
		return
	}
	if len(recipients) == 0 {
		return
	}

	msg := core.EmailMessage{
		Bcc:     recipients,
		Subject: ann.Title,
		BodyStr: ann.Body,
	}
	if err = msg.Render(); err != nil {
		d.logger.Error("rendering announcement email", "announcement", ann.ID, "error", err)
		return
	}
	d.mailSvc.SendMessages(&msg)
}

func (d *Dispatcher) audience(ann Announcement) ([]mail.Address, error) {
	active := true
	filter := user.QueryFilter{IsActive: &active}
	switch ann.Audience {
	case AudienceStudents:
		filter.Role = user.RoleStudent
	case AudienceTeachers:
		filter.Role = user.RoleTeacher
	}

	users, err := d.usrSvc.Query(context.Background(), &filter, nil)
	if err != nil {
		return nil, err
	}
	recipients := make([]mail.Address, 0, len(users))
	for _, usr := range users {
		if usr.Email == "" {
			continue
		}
		recipients = append(recipients, mail.Address{Name: usr.Name, Address: usr.Email})
	}
	return recipients, nil
}
