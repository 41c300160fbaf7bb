package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"opentry/internal/model/auth"
	"opentry/internal/model/payment"
	prodModel "opentry/internal/model/production"
	model "opentry/internal/model/reel"
	"opentry/internal/model/social"
	"opentry/internal/pkg/razorpay"
)

// ---- repositories ----

type memUsers struct {
	mu    sync.Mutex
	users map[string]*auth.User
}

func newMemUsers() *memUsers { return &memUsers{users: map[string]*auth.User{}} }

func (m *memUsers) Create(ctx context.Context, u *auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return errors.New("duplicate email")
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) FindByID(ctx context.Context, id string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (m *memUsers) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (m *memUsers) TouchLogin(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	u.LastLoginAt = &at
	return nil
}

type memProjects struct {
	mu       sync.Mutex
	projects map[string]*model.Project
}

func newMemProjects() *memProjects { return &memProjects{projects: map[string]*model.Project{}} }

func cloneProject(p *model.Project) *model.Project {
	cp := *p
	cp.ReferenceImages = append([]string(nil), p.ReferenceImages...)
	cp.Images = append([]model.GeneratedImage(nil), p.Images...)
	cp.Videos = append([]model.GeneratedVideo(nil), p.Videos...)
	return &cp
}

func (m *memProjects) Create(ctx context.Context, p *model.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.CreatedAt = time.Now()
	m.projects[p.ID] = cloneProject(p)
	return nil
}

func (m *memProjects) FindByID(ctx context.Context, id string) (*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.projects[id]; ok {
		return cloneProject(p), nil
	}
	return nil, mongo.ErrNoDocuments
}

func (m *memProjects) ListByUser(ctx context.Context, userID string, limit int64) ([]*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Project{}
	for _, p := range m.projects {
		if p.UserID == userID {
			out = append(out, cloneProject(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memProjects) update(id string, fn func(p *model.Project)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	fn(p)
	return nil
}

func (m *memProjects) SetPhase(ctx context.Context, id string, phase model.Phase, errMsg string) error {
	return m.update(id, func(p *model.Project) { p.Phase, p.Error = phase, errMsg })
}

func (m *memProjects) SetImages(ctx context.Context, id string, images []model.GeneratedImage) error {
	return m.update(id, func(p *model.Project) { p.Images = append([]model.GeneratedImage(nil), images...) })
}

func (m *memProjects) SetVideos(ctx context.Context, id string, videos []model.GeneratedVideo) error {
	return m.update(id, func(p *model.Project) { p.Videos = append([]model.GeneratedVideo(nil), videos...) })
}

func (m *memProjects) SetTransaction(ctx context.Context, id, txID string) error {
	return m.update(id, func(p *model.Project) { p.TransactionID = txID })
}

func (m *memProjects) SetFinalVideo(ctx context.Context, id, url string) error {
	return m.update(id, func(p *model.Project) { p.FinalVideoURL, p.Phase, p.Error = url, model.PhaseComplete, "" })
}

type memTransactions struct {
	mu  sync.Mutex
	txs map[string]*payment.Transaction
}

func newMemTransactions() *memTransactions {
	return &memTransactions{txs: map[string]*payment.Transaction{}}
}

func (m *memTransactions) Create(ctx context.Context, tx *payment.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tx
	m.txs[tx.ID] = &cp
	return nil
}

func (m *memTransactions) FindByID(ctx context.Context, id string) (*payment.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx, ok := m.txs[id]; ok {
		cp := *tx
		return &cp, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (m *memTransactions) FindByVendorRef(ctx context.Context, ref string) (*payment.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range m.txs {
		if tx.VendorRef == ref || (tx.OrderRef != "" && tx.OrderRef == ref) {
			cp := *tx
			return &cp, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (m *memTransactions) FindByPaymentID(ctx context.Context, paymentID string) (*payment.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range m.txs {
		if tx.PaymentID == paymentID {
			cp := *tx
			return &cp, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (m *memTransactions) AttachQR(ctx context.Context, id string, qr payment.QRInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	tx.VendorRef, tx.OrderRef, tx.QRImageURL, tx.PaymentLink, tx.CloseBy = qr.VendorRef, qr.OrderRef, qr.ImageURL, qr.PaymentLink, qr.CloseBy
	return nil
}

func (m *memTransactions) Settle(ctx context.Context, id string, s payment.Settlement) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[id]
	if !ok || tx.Status != payment.StatusPending {
		return false, nil
	}
	tx.Status = s.Status
	tx.PaymentID = s.PaymentID
	tx.FailureReason = s.Reason
	tx.SettledBy = s.By
	if s.Status == payment.StatusCompleted {
		now := time.Now()
		tx.PaidAt = &now
	}
	return true, nil
}

func (m *memTransactions) ListExpiredPending(ctx context.Context, now time.Time, limit int64) ([]*payment.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*payment.Transaction
	for _, tx := range m.txs {
		if tx.Status == payment.StatusPending && tx.CloseBy.Before(now) {
			cp := *tx
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memProductions struct {
	mu    sync.Mutex
	items map[string]*prodModel.Production
	saves int
}

func newMemProductions() *memProductions {
	return &memProductions{items: map[string]*prodModel.Production{}}
}

func (m *memProductions) Create(ctx context.Context, p *prodModel.Production) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.items[p.ID] = &cp
	return nil
}

func (m *memProductions) FindByID(ctx context.Context, id string) (*prodModel.Production, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.items[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (m *memProductions) SaveState(ctx context.Context, id string, state prodModel.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	p.State = state
	m.saves++
	return nil
}

type memConnections struct {
	mu    sync.Mutex
	conns map[string]*social.Connection
}

func newMemConnections() *memConnections {
	return &memConnections{conns: map[string]*social.Connection{}}
}

func connKey(session string, platform social.Platform) string {
	return session + "|" + string(platform)
}

func (m *memConnections) ListBySession(ctx context.Context, session string, platforms ...social.Platform) ([]*social.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*social.Connection{}
	for key, c := range m.conns {
		if !strings.HasPrefix(key, session+"|") {
			continue
		}
		if len(platforms) > 0 {
			found := false
			for _, p := range platforms {
				found = found || p == c.Platform
			}
			if !found {
				continue
			}
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memConnections) Upsert(ctx context.Context, c *social.Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.conns[connKey(c.SessionID, c.Platform)] = &cp
	return nil
}

func (m *memConnections) Delete(ctx context.Context, session string, platform social.Platform) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := connKey(session, platform)
	if _, ok := m.conns[key]; !ok {
		return false, nil
	}
	delete(m.conns, key)
	return true, nil
}

// ---- vendors ----

// fakeGateway 第 captureOn 次查询时返回已捕获的支付，0 表示永不支付
type fakeGateway struct {
	mu         sync.Mutex
	captureOn  int
	fetches    int
	qrs        int
	orders     int
	createErr  error
	orderErr   error
	webhookOK  bool
	checkoutOK bool
	payments   map[string]razorpay.Payment // FetchPayment 的结果
}

func (g *fakeGateway) CreateOrder(ctx context.Context, req razorpay.OrderRequest) (*razorpay.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.orderErr != nil {
		return nil, g.orderErr
	}
	g.orders++
	return &razorpay.Order{ID: fmt.Sprintf("order_%d", g.orders), Amount: int64(req.Amount) * 100}, nil
}

func (g *fakeGateway) FetchPayment(ctx context.Context, paymentID string) (*razorpay.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.payments[paymentID]
	if !ok {
		return nil, errors.New("razorpay fetch payment: not found")
	}
	return &p, nil
}

func (g *fakeGateway) CreateUPIQR(ctx context.Context, req razorpay.QRRequest) (*razorpay.QRCode, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.qrs++
	return &razorpay.QRCode{
		ID:       fmt.Sprintf("qr_%d", g.qrs),
		ImageURL: fmt.Sprintf("https://rzp.example/qr_%d.png", g.qrs),
		ShortURL: fmt.Sprintf("https://rzp.io/q/%d", g.qrs),
		CloseBy:  req.CloseBy.Unix(),
	}, nil
}

func (g *fakeGateway) FetchQRPayments(ctx context.Context, qrID string) ([]razorpay.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetches++
	if g.captureOn > 0 && g.fetches >= g.captureOn {
		return []razorpay.Payment{
			{ID: "pay_failed", Status: razorpay.PaymentStatusFailed, Amount: 2900},
			{ID: "pay_ok", Status: razorpay.PaymentStatusCaptured, Amount: 2900},
		}, nil
	}
	return []razorpay.Payment{}, nil
}

func (g *fakeGateway) Fetches() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fetches
}

func (g *fakeGateway) VerifyWebhook(body []byte, signature string) bool {
	return g.webhookOK && signature == "good"
}

func (g *fakeGateway) VerifyCheckout(orderID, paymentID, signature string) bool {
	return g.checkoutOK && signature == "good"
}

type fakeImageGen struct {
	mu      sync.Mutex
	fail    map[string]bool // prompt 包含该子串时失败
	calls   int
	gate    chan struct{} // 非 nil 时每次生成都等待 gate 关闭
	entered chan struct{}
}

// hold 之后的生成阻塞到返回的 release 被调用
func (f *fakeImageGen) hold() (entered <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	f.entered = make(chan struct{}, 16)
	gate := f.gate
	return f.entered, func() {
		f.mu.Lock()
		f.gate, f.entered = nil, nil
		f.mu.Unlock()
		close(gate)
	}
}

func (f *fakeImageGen) GenerateImage(ctx context.Context, prompt string, refs []string) (string, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	gate, entered := f.gate, f.entered
	f.mu.Unlock()
	if gate != nil {
		entered <- struct{}{}
		<-gate
	}
	for frag, on := range f.fail {
		if on && strings.Contains(prompt, frag) {
			return "", errors.New("Rate limit exceeded. Please try again later.")
		}
	}
	return fmt.Sprintf("https://img.example/%d.png", n), nil
}

func (f *fakeImageGen) heal() {
	f.mu.Lock()
	f.fail = nil
	f.mu.Unlock()
}

type fakeVideoGen struct {
	mu   sync.Mutex
	fail map[string]bool // 按源图片地址失败
}

func (f *fakeVideoGen) GenerateVideo(ctx context.Context, imageURL, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[imageURL] {
		return "", errors.New("Video generation timeout - please try again")
	}
	return strings.TrimSuffix(imageURL, ".png") + ".mp4", nil
}

// fakeCompositor 前 failures 次返回 err
type fakeCompositor struct {
	mu       sync.Mutex
	failures int
	err      error
	calls    int
	urls     []string
}

func (f *fakeCompositor) Compose(ctx context.Context, templateID string, urls []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.urls = urls
	if f.calls <= f.failures {
		return "", f.err
	}
	return "https://render.example/final.mp4", nil
}
