package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/YouHyuksoo/HANES-sub002/internal/models"
	"github.com/YouHyuksoo/HANES-sub002/internal/queue"
	"github.com/YouHyuksoo/HANES-sub002/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

type recordingPublisher struct {
	mu       sync.Mutex
	payloads []queue.ShipmentEventPayload
	err      error
}

func (p *recordingPublisher) EnqueueShipmentEvent(payload queue.ShipmentEventPayload, _ ...asynq.Option) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *recordingPublisher) recorded() []queue.ShipmentEventPayload {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.ShipmentEventPayload(nil), p.payloads...)
}

type shippingFixture struct {
	ctx       context.Context
	db        *gorm.DB
	boxes     *BoxService
	pallets   *PalletService
	shipments *ShipmentService
	publisher *recordingPublisher
}

func setupShippingServiceTest(t *testing.T) *shippingFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:shipping_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	return newShippingFixture(t, db, NewTxManager(db, 0, nil))
}

// setupConcurrentShippingTest 文件型 sqlite，多连接并发写入，锁冲突由事务重试吸收
func setupConcurrentShippingTest(t *testing.T) *shippingFixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shipping.db")
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(8)
	t.Cleanup(func() { _ = sqlDB.Close() })

	tx := NewTxManager(db, 100, nil)
	tx.backoff = time.Millisecond
	return newShippingFixture(t, db, tx)
}

func newShippingFixture(t *testing.T, db *gorm.DB, tx *TxManager) *shippingFixture {
	t.Helper()
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	boxRepo := repository.NewBoxRepository(db)
	palletRepo := repository.NewPalletRepository(db)
	shipmentRepo := repository.NewShipmentRepository(db)
	eventRepo := repository.NewShipmentEventRepository(db)
	partRepo := repository.NewPartRepository(db)
	recalc := NewRecalculator(boxRepo, palletRepo, shipmentRepo)
	publisher := &recordingPublisher{}

	return &shippingFixture{
		ctx:   context.Background(),
		db:    db,
		boxes: NewBoxService(tx, boxRepo, palletRepo, partRepo, recalc, nil),
		pallets: NewPalletService(tx, boxRepo, palletRepo, shipmentRepo, recalc, nil, PalletServiceOptions{
			MaxBatchSize: 10,
		}),
		shipments: NewShipmentService(tx, boxRepo, palletRepo, shipmentRepo, eventRepo, recalc, nil, ShipmentServiceOptions{
			Publisher:    publisher,
			MaxBatchSize: 10,
		}),
		publisher: publisher,
	}
}

func (f *shippingFixture) createPart(t *testing.T, code string) *models.Part {
	t.Helper()
	part := &models.Part{PartCode: code, PartName: "part " + code, PartType: "FG"}
	if err := f.db.Create(part).Error; err != nil {
		t.Fatalf("create part failed: %v", err)
	}
	return part
}

// closedBox 创建并封箱
func (f *shippingFixture) closedBox(t *testing.T, boxNo string, partID uint, qty int) *models.Box {
	t.Helper()
	box, err := f.boxes.Create(f.ctx, CreateBoxInput{BoxNo: boxNo, PartID: partID, Qty: qty})
	if err != nil {
		t.Fatalf("create box %s failed: %v", boxNo, err)
	}
	box, err = f.boxes.Close(f.ctx, box.ID)
	if err != nil {
		t.Fatalf("close box %s failed: %v", boxNo, err)
	}
	return box
}

// closedPallet 创建托盘、装入箱子并封托
func (f *shippingFixture) closedPallet(t *testing.T, palletNo string, boxIDs ...uint) *models.Pallet {
	t.Helper()
	pallet, err := f.pallets.Create(f.ctx, palletNo)
	if err != nil {
		t.Fatalf("create pallet %s failed: %v", palletNo, err)
	}
	if len(boxIDs) > 0 {
		if _, err := f.pallets.AddBoxes(f.ctx, pallet.ID, boxIDs); err != nil {
			t.Fatalf("add boxes to %s failed: %v", palletNo, err)
		}
	}
	pallet, err = f.pallets.Close(f.ctx, pallet.ID)
	if err != nil {
		t.Fatalf("close pallet %s failed: %v", palletNo, err)
	}
	return pallet
}

func (f *shippingFixture) reloadBox(t *testing.T, id uint) *models.Box {
	t.Helper()
	var box models.Box
	if err := f.db.Unscoped().First(&box, id).Error; err != nil {
		t.Fatalf("reload box failed: %v", err)
	}
	return &box
}

func (f *shippingFixture) reloadPallet(t *testing.T, id uint) *models.Pallet {
	t.Helper()
	var pallet models.Pallet
	if err := f.db.Unscoped().First(&pallet, id).Error; err != nil {
		t.Fatalf("reload pallet failed: %v", err)
	}
	return &pallet
}

func (f *shippingFixture) reloadShipment(t *testing.T, id uint) *models.Shipment {
	t.Helper()
	var shipment models.Shipment
	if err := f.db.Unscoped().First(&shipment, id).Error; err != nil {
		t.Fatalf("reload shipment failed: %v", err)
	}
	return &shipment
}

// assertAggregatesConsistent 校验所有托盘与出货单的缓存等于子项实时汇总
func (f *shippingFixture) assertAggregatesConsistent(t *testing.T) {
	t.Helper()
	var pallets []models.Pallet
	if err := f.db.Find(&pallets).Error; err != nil {
		t.Fatalf("list pallets failed: %v", err)
	}
	for _, pallet := range pallets {
		var boxes []models.Box
		if err := f.db.Where("pallet_id = ?", pallet.ID).Find(&boxes).Error; err != nil {
			t.Fatalf("list boxes failed: %v", err)
		}
		qty := 0
		for _, box := range boxes {
			qty += box.Qty
		}
		if pallet.BoxCount != len(boxes) || pallet.TotalQty != qty {
			t.Fatalf("pallet %s cache drift: cached=%d/%d live=%d/%d", pallet.PalletNo, pallet.BoxCount, pallet.TotalQty, len(boxes), qty)
		}
	}
	var shipments []models.Shipment
	if err := f.db.Find(&shipments).Error; err != nil {
		t.Fatalf("list shipments failed: %v", err)
	}
	for _, shipment := range shipments {
		var attached []models.Pallet
		if err := f.db.Where("shipment_id = ?", shipment.ID).Find(&attached).Error; err != nil {
			t.Fatalf("list attached pallets failed: %v", err)
		}
		boxes, qty := 0, 0
		for _, pallet := range attached {
			boxes += pallet.BoxCount
			qty += pallet.TotalQty
		}
		if shipment.PalletCount != len(attached) || shipment.BoxCount != boxes || shipment.TotalQty != qty {
			t.Fatalf("shipment %s cache drift: cached=%d/%d/%d live=%d/%d/%d",
				shipment.ShipNo, shipment.PalletCount, shipment.BoxCount, shipment.TotalQty, len(attached), boxes, qty)
		}
	}
}

func assertKind(t *testing.T, err error, kind error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v, got nil", kind)
	}
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
}
