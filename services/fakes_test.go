package services_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"storefront-service/models"
	"storefront-service/repository"
)

// memDB is an in-memory stand-in for the Postgres schema. Each fake
// repository below is a view over it, so services see one consistent store.
type memDB struct {
	mu        sync.Mutex
	products  map[uuid.UUID]*models.Product
	orders    map[uuid.UUID]*models.Order
	items     map[uuid.UUID][]*models.OrderItem
	reviews   map[[2]uuid.UUID]*models.Review
	wishlists map[uuid.UUID]*models.Wishlist
	saved     map[uuid.UUID][]uuid.UUID
	vouchers  map[string]*models.Voucher
	category  *models.Category
	clock     time.Time
}

func newMemDB() *memDB {
	return &memDB{
		products:  map[uuid.UUID]*models.Product{},
		orders:    map[uuid.UUID]*models.Order{},
		items:     map[uuid.UUID][]*models.OrderItem{},
		reviews:   map[[2]uuid.UUID]*models.Review{},
		wishlists: map[uuid.UUID]*models.Wishlist{},
		saved:     map[uuid.UUID][]uuid.UUID{},
		vouchers:  map[string]*models.Voucher{},
		category:  &models.Category{ID: uuid.New(), Name: "Loose Leaf", Slug: "loose-leaf"},
		clock:     time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

// tick returns strictly increasing timestamps so ordering is deterministic.
func (db *memDB) tick() time.Time {
	db.clock = db.clock.Add(time.Second)
	return db.clock
}

func (db *memDB) addProduct(name, price string, stock int) *models.Product {
	db.mu.Lock()
	defer db.mu.Unlock()
	p := &models.Product{
		ID:         uuid.New(),
		CategoryID: db.category.ID,
		Category:   db.category,
		Name:       name,
		Slug:       strings.ToLower(name),
		Price:      decimal.RequireFromString(price),
		Stock:      stock,
		Available:  true,
	}
	db.products[p.ID] = p
	return p
}

func (db *memDB) product(id uuid.UUID) *models.Product {
	db.mu.Lock()
	defer db.mu.Unlock()
	p := *db.products[id]
	return &p
}

func (db *memDB) setPrice(id uuid.UUID, price string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.products[id].Price = decimal.RequireFromString(price)
}

func (db *memDB) orderCount(userID uuid.UUID, status models.OrderStatus) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for _, o := range db.orders {
		if o.UserID == userID && o.Status == status {
			n++
		}
	}
	return n
}

func (db *memDB) lines(orderID uuid.UUID) map[uuid.UUID]int {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := map[uuid.UUID]int{}
	for _, it := range db.items[orderID] {
		out[it.ProductID] = it.Quantity
	}
	return out
}

// itemsLocked copies an order's lines with their live product rows.
func (db *memDB) itemsLocked(orderID uuid.UUID) []models.OrderItem {
	out := make([]models.OrderItem, 0, len(db.items[orderID]))
	for _, it := range db.items[orderID] {
		cp := *it
		if p, ok := db.products[it.ProductID]; ok {
			pc := *p
			cp.Product = &pc
		}
		out = append(out, cp)
	}
	return out
}

func (db *memDB) orderLocked(o *models.Order, withItems bool) *models.Order {
	cp := *o
	if o.VoucherID != nil {
		for _, v := range db.vouchers {
			if v.ID == *o.VoucherID {
				vc := *v
				cp.Voucher = &vc
			}
		}
	}
	if withItems {
		cp.Items = db.itemsLocked(o.ID)
	}
	return &cp
}

func (db *memDB) upsertLocked(orderID, productID uuid.UUID, qty int) {
	for _, it := range db.items[orderID] {
		if it.ProductID == productID {
			it.Quantity = min(it.Quantity+qty, models.MaxLineQuantity)
			return
		}
	}
	db.items[orderID] = append(db.items[orderID], &models.OrderItem{
		ID:        uuid.New(),
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  qty,
		CreatedAt: db.tick(),
	})
}

func (db *memDB) openLocked(orderID uuid.UUID) error {
	o, ok := db.orders[orderID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if !o.IsOpen() {
		return repository.ErrOrderNotOpen
	}
	return nil
}

// ---- orders ----

type fakeOrderRepo struct{ db *memDB }

func (r *fakeOrderRepo) GetOrCreateOpen(_ context.Context, userID uuid.UUID) (*models.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, o := range r.db.orders {
		if o.UserID == userID && o.IsOpen() {
			return r.db.orderLocked(o, false), nil
		}
	}
	o := &models.Order{ID: uuid.New(), UserID: userID, Status: models.OrderStatusOpen, CreatedAt: r.db.tick()}
	r.db.orders[o.ID] = o
	return r.db.orderLocked(o, false), nil
}

func (r *fakeOrderRepo) FindOpen(_ context.Context, userID uuid.UUID) (*models.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, o := range r.db.orders {
		if o.UserID == userID && o.IsOpen() {
			return r.db.orderLocked(o, false), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeOrderRepo) FindByID(_ context.Context, orderID uuid.UUID) (*models.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r.db.orderLocked(o, false), nil
}

func (r *fakeOrderRepo) FindByIDAndUserID(_ context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[orderID]
	if !ok || o.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return r.db.orderLocked(o, true), nil
}

func (r *fakeOrderRepo) FindByUserID(_ context.Context, userID uuid.UUID, status models.OrderStatus, page, limit int) ([]models.Order, int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var all []models.Order
	for _, o := range r.db.orders {
		if o.UserID == userID && o.Status == status {
			all = append(all, *r.db.orderLocked(o, true))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return []models.Order{}, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *fakeOrderRepo) FindByPaymentSessionID(_ context.Context, sessionID string) (*models.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, o := range r.db.orders {
		if o.PaymentSessionID != nil && *o.PaymentSessionID == sessionID {
			return r.db.orderLocked(o, false), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeOrderRepo) FindItems(_ context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.itemsLocked(orderID), nil
}

func (r *fakeOrderRepo) AddItem(_ context.Context, orderID, productID uuid.UUID, quantity int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.openLocked(orderID); err != nil {
		return err
	}
	r.db.upsertLocked(orderID, productID, quantity)
	return nil
}

func (r *fakeOrderRepo) DecrementItem(_ context.Context, orderID, productID uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.openLocked(orderID); err != nil {
		return err
	}
	lines := r.db.items[orderID]
	for i, it := range lines {
		if it.ProductID != productID {
			continue
		}
		if it.Quantity <= 1 {
			r.db.items[orderID] = append(lines[:i], lines[i+1:]...)
		} else {
			it.Quantity--
		}
		return nil
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeOrderRepo) RemoveItem(_ context.Context, orderID, productID uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.openLocked(orderID); err != nil {
		return err
	}
	lines := r.db.items[orderID]
	for i, it := range lines {
		if it.ProductID == productID {
			r.db.items[orderID] = append(lines[:i], lines[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeOrderRepo) MergeItems(_ context.Context, orderID uuid.UUID, lines []models.LineQuantity) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.openLocked(orderID); err != nil {
		return err
	}
	for _, l := range lines {
		r.db.upsertLocked(orderID, l.ProductID, l.Quantity)
	}
	return nil
}

func (r *fakeOrderRepo) SetPaymentSession(_ context.Context, orderID uuid.UUID, sessionID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.openLocked(orderID); err != nil {
		return repository.ErrOrderNotOpen
	}
	r.db.orders[orderID].PaymentSessionID = &sessionID
	return nil
}

func (r *fakeOrderRepo) SetVoucher(_ context.Context, orderID uuid.UUID, voucherID *uuid.UUID, discount int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.openLocked(orderID); err != nil {
		return repository.ErrOrderNotOpen
	}
	r.db.orders[orderID].VoucherID = voucherID
	r.db.orders[orderID].Discount = discount
	return nil
}

func (r *fakeOrderRepo) MarkPaid(_ context.Context, orderID uuid.UUID, paidAt time.Time) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[orderID]
	if !ok || !o.IsOpen() {
		return false, nil
	}
	o.Status = models.OrderStatusPaid
	o.PaidAt = &paidAt
	for _, it := range r.db.items[orderID] {
		p := r.db.products[it.ProductID]
		p.Stock -= it.Quantity
		if p.Stock < 0 {
			p.Stock = 0
		}
	}
	return true, nil
}

func (r *fakeOrderRepo) HasPaidItem(_ context.Context, userID, productID uuid.UUID) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, o := range r.db.orders {
		if o.UserID != userID || !o.IsPaid() {
			continue
		}
		for _, it := range r.db.items[o.ID] {
			if it.ProductID == productID {
				return true, nil
			}
		}
	}
	return false, nil
}

// ---- products ----

type fakeProductRepo struct{ db *memDB }

func (r *fakeProductRepo) FindAll(_ context.Context, filter models.ProductFilter) ([]models.Product, int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	q := strings.ToLower(filter.Query)
	var out []models.Product
	for _, p := range r.db.products {
		if !p.Available {
			continue
		}
		if q != "" && !matchesKeyword(p, q) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	total := int64(len(out))
	start := (filter.Page - 1) * filter.PerPage
	if start >= len(out) {
		return []models.Product{}, total, nil
	}
	end := start + filter.PerPage
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

func matchesKeyword(p *models.Product, q string) bool {
	if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Description), q) {
		return true
	}
	return p.Category != nil && strings.Contains(strings.ToLower(p.Category.Name), q)
}

func (r *fakeProductRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeProductRepo) Create(_ context.Context, product *models.Product) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.products {
		if p.Slug == product.Slug {
			return gorm.ErrDuplicatedKey
		}
	}
	product.ID = uuid.New()
	cp := *product
	r.db.products[product.ID] = &cp
	return nil
}

func (r *fakeProductRepo) Update(_ context.Context, product *models.Product) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cp := *product
	r.db.products[product.ID] = &cp
	return nil
}

// ---- reviews ----

type fakeReviewRepo struct{ db *memDB }

func (r *fakeReviewRepo) Upsert(_ context.Context, review *models.Review) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	key := [2]uuid.UUID{review.UserID, review.ProductID}
	if existing, ok := r.db.reviews[key]; ok {
		existing.Rating = review.Rating
		existing.Comment = review.Comment
		existing.UpdatedAt = r.db.tick()
		*review = *existing
		return nil
	}
	review.ID = uuid.New()
	review.CreatedAt = r.db.tick()
	review.UpdatedAt = review.CreatedAt
	cp := *review
	r.db.reviews[key] = &cp
	return nil
}

func (r *fakeReviewRepo) FindByProductID(_ context.Context, productID uuid.UUID) ([]models.Review, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.Review
	for _, rv := range r.db.reviews {
		if rv.ProductID == productID {
			out = append(out, *rv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *fakeReviewRepo) AverageRating(ctx context.Context, productID uuid.UUID) (float64, error) {
	reviews, _ := r.FindByProductID(ctx, productID)
	if len(reviews) == 0 {
		return 0, nil
	}
	sum := 0
	for _, rv := range reviews {
		sum += rv.Rating
	}
	return float64(sum) / float64(len(reviews)), nil
}

// ---- wishlists ----

type fakeWishlistRepo struct{ db *memDB }

func (r *fakeWishlistRepo) GetOrCreate(_ context.Context, userID uuid.UUID) (*models.Wishlist, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	w, ok := r.db.wishlists[userID]
	if !ok {
		w = &models.Wishlist{ID: uuid.New(), UserID: userID}
		r.db.wishlists[userID] = w
	}
	cp := *w
	return &cp, nil
}

func (r *fakeWishlistRepo) Items(_ context.Context, wishlistID uuid.UUID) ([]models.WishlistItem, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.WishlistItem
	for _, pid := range r.db.saved[wishlistID] {
		pc := *r.db.products[pid]
		out = append(out, models.WishlistItem{WishlistID: wishlistID, ProductID: pid, Product: &pc})
	}
	return out, nil
}

func (r *fakeWishlistRepo) AddItem(_ context.Context, wishlistID, productID uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, pid := range r.db.saved[wishlistID] {
		if pid == productID {
			return nil
		}
	}
	r.db.saved[wishlistID] = append(r.db.saved[wishlistID], productID)
	return nil
}

func (r *fakeWishlistRepo) RemoveItem(_ context.Context, wishlistID, productID uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	ids := r.db.saved[wishlistID]
	for i, pid := range ids {
		if pid == productID {
			r.db.saved[wishlistID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func (r *fakeWishlistRepo) MoveToOrder(_ context.Context, wishlistID, orderID uuid.UUID) (int, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var available, kept []uuid.UUID
	for _, pid := range r.db.saved[wishlistID] {
		if p, ok := r.db.products[pid]; ok && p.Available {
			available = append(available, pid)
		} else {
			kept = append(kept, pid)
		}
	}
	if len(available) == 0 {
		return 0, len(kept), nil
	}
	if err := r.db.openLocked(orderID); err != nil {
		return 0, 0, err
	}
	for _, pid := range available {
		r.db.upsertLocked(orderID, pid, 1)
	}
	r.db.saved[wishlistID] = kept
	return len(available), len(kept), nil
}

// ---- vouchers ----

type fakeVoucherRepo struct{ db *memDB }

func (r *fakeVoucherRepo) Create(_ context.Context, v *models.Voucher) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.vouchers[strings.ToUpper(v.Code)]; ok {
		return gorm.ErrDuplicatedKey
	}
	v.ID = uuid.New()
	cp := *v
	r.db.vouchers[strings.ToUpper(v.Code)] = &cp
	return nil
}

func (r *fakeVoucherRepo) FindByCode(_ context.Context, code string) (*models.Voucher, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	v, ok := r.db.vouchers[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *v
	return &cp, nil
}

func (r *fakeVoucherRepo) Deactivate(_ context.Context, code string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	v, ok := r.db.vouchers[strings.ToUpper(code)]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	v.Active = false
	return nil
}

func (r *fakeVoucherRepo) FindAll(_ context.Context, _, _ int) ([]models.Voucher, int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.Voucher
	for _, v := range r.db.vouchers {
		out = append(out, *v)
	}
	return out, int64(len(out)), nil
}

// ---- collaborators ----

type fakePublisher struct {
	mu       sync.Mutex
	messages [][]byte
}

func (f *fakePublisher) Publish(_ context.Context, _ string, message []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

type memDeduper struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (d *memDeduper) Seen(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.keys[key], nil
}

func (d *memDeduper) Remember(_ context.Context, key string, _ time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.keys == nil {
		d.keys = map[string]bool{}
	}
	d.keys[key] = true
	return nil
}
