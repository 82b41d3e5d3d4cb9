package platform

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/CyberwizD/notification-ingest/internal/models"
	"github.com/CyberwizD/notification-ingest/pkg/logger"
)

// MemoryDevice is an in-process Bridge. It keeps tray, badge and channel state the way
// the OS would, logs every call, and lets callers inject failures. ingestd uses it when
// no native shell is attached, tests use it everywhere.
type MemoryDevice struct {
	mu     sync.Mutex
	logger *slog.Logger

	status     AuthorizationStatus
	permErr    error
	token      string
	tokenErr   error
	registered bool

	initial *models.RemoteMessage

	channels      map[string]models.NotificationChannel
	channelCalls  int
	createChanErr error

	tray       []DisplayRequest
	displayed  []DisplayRequest
	displayErr error
	cancelled  []string
	trayClears int
	badge      int
	badgeSets  int
}

// MemoryOption configures a MemoryDevice.
type MemoryOption func(*MemoryDevice)

// WithAuthorization sets what RequestPermission reports.
func WithAuthorization(status AuthorizationStatus) MemoryOption {
	return func(d *MemoryDevice) { d.status = status }
}

// WithToken sets the push token the device hands out.
func WithToken(token string) MemoryOption {
	return func(d *MemoryDevice) { d.token = token }
}

// WithLaunchNotification simulates a process launched from a tray notification.
func WithLaunchNotification(msg models.RemoteMessage) MemoryOption {
	return func(d *MemoryDevice) { d.setInitial(msg) }
}

// WithMemoryLogger sets the logger for the device.
func WithMemoryLogger(l *slog.Logger) MemoryOption {
	return func(d *MemoryDevice) { d.logger = l }
}

// NewMemoryDevice returns a device with authorization granted and no token.
func NewMemoryDevice(opts ...MemoryOption) *MemoryDevice {
	d := &MemoryDevice{
		logger:   slog.Default(),
		status:   StatusAuthorized,
		channels: make(map[string]models.NotificationChannel),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With(logger.Component("memory_device"))
	return d
}

func (d *MemoryDevice) RequestPermission(ctx context.Context) (AuthorizationStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.permErr != nil {
		return StatusNotDetermined, d.permErr
	}
	d.logger.DebugContext(ctx, "permission requested", slog.String("status", d.status.String()))
	return d.status, nil
}

func (d *MemoryDevice) RegisterDeviceForRemoteMessages(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.registered = true
	return nil
}

func (d *MemoryDevice) Token(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tokenErr != nil {
		return "", d.tokenErr
	}
	return d.token, nil
}

func (d *MemoryDevice) InitialNotification(ctx context.Context) (*models.RemoteMessage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.initial == nil {
		return nil, nil
	}
	msg := *d.initial
	return &msg, nil
}

func (d *MemoryDevice) CreateChannel(ctx context.Context, ch models.NotificationChannel) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channelCalls++
	if d.createChanErr != nil {
		return "", d.createChanErr
	}
	d.channels[ch.ID] = ch
	d.logger.DebugContext(ctx, "channel created", slog.String("channel_id", ch.ID))
	return ch.ID, nil
}

func (d *MemoryDevice) Display(ctx context.Context, req DisplayRequest) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.displayErr != nil {
		return "", d.displayErr
	}
	if req.ID == "" {
		req.ID = models.NewNotificationID()
	}
	d.displayed = append(d.displayed, req)
	d.tray = append(d.tray, req)
	d.logger.DebugContext(ctx, "notification displayed", logger.NotificationID(req.ID), slog.String("channel_id", req.ChannelID))
	return req.ID, nil
}

func (d *MemoryDevice) Cancel(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	found := false
	if d.initial != nil && d.initial.MessageID == id {
		d.initial = nil
		found = true
	}
	idx := slices.IndexFunc(d.tray, func(r DisplayRequest) bool { return r.ID == id })
	if idx >= 0 {
		d.tray = slices.Delete(d.tray, idx, idx+1)
		found = true
	}
	if !found {
		return ErrNotificationNotFound
	}
	d.cancelled = append(d.cancelled, id)
	return nil
}

func (d *MemoryDevice) ClearTray(ctx context.Context, keep ...string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.trayClears++
	d.tray = slices.DeleteFunc(d.tray, func(r DisplayRequest) bool {
		return !slices.Contains(keep, r.ID)
	})
	return nil
}

func (d *MemoryDevice) SetBadgeCount(ctx context.Context, count int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.badge = count
	d.badgeSets++
	return nil
}

// SetPermissionError makes RequestPermission fail with err.
func (d *MemoryDevice) SetPermissionError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.permErr = err
}

// SetTokenError makes Token fail with err.
func (d *MemoryDevice) SetTokenError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tokenErr = err
}

// SetChannelError makes CreateChannel fail with err. nil restores it.
func (d *MemoryDevice) SetChannelError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.createChanErr = err
}

// SetDisplayError makes Display fail with err. nil restores it.
func (d *MemoryDevice) SetDisplayError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.displayErr = err
}

// SetBadge puts the badge counter at count without recording a call.
func (d *MemoryDevice) SetBadge(count int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.badge = count
}

// Post puts a notification in the tray as if the OS had shown it.
func (d *MemoryDevice) Post(req DisplayRequest) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tray = append(d.tray, req)
}

func (d *MemoryDevice) setInitial(msg models.RemoteMessage) {
	d.initial = &msg
	d.tray = append(d.tray, DisplayRequest{ID: msg.MessageID, Data: msg.Data})
}

// Registered reports whether the device registered for remote messages.
func (d *MemoryDevice) Registered() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.registered
}

// Displayed returns every successful Display call in order.
func (d *MemoryDevice) Displayed() []DisplayRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.displayed)
}

// Tray returns the ids currently in the tray.
func (d *MemoryDevice) Tray() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, 0, len(d.tray))
	for _, r := range d.tray {
		ids = append(ids, r.ID)
	}
	return ids
}

// Cancelled returns the ids successfully cancelled.
func (d *MemoryDevice) Cancelled() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.cancelled)
}

// Badge returns the badge counter and how many times it was set.
func (d *MemoryDevice) Badge() (count, sets int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.badge, d.badgeSets
}

// ChannelCalls returns how many times CreateChannel reached the device.
func (d *MemoryDevice) ChannelCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.channelCalls
}

// Channels returns the channels that exist on the device.
func (d *MemoryDevice) Channels() []models.NotificationChannel {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]models.NotificationChannel, 0, len(d.channels))
	for _, ch := range d.channels {
		out = append(out, ch)
	}
	return out
}

// TrayClears returns how many times ClearTray was called.
func (d *MemoryDevice) TrayClears() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.trayClears
}
