package repository

import (
	"testing"
	"time"

	"github.com/YouHyuksoo/HANES-sub002/internal/models"
)

func createRepoPallet(t *testing.T, repo *GormPalletRepository, palletNo string, boxCount, totalQty int, shipmentID *uint) *models.Pallet {
	t.Helper()
	pallet := &models.Pallet{
		PalletNo:   palletNo,
		BoxCount:   boxCount,
		TotalQty:   totalQty,
		Status:     "CLOSED",
		ShipmentID: shipmentID,
	}
	if err := repo.Create(pallet); err != nil {
		t.Fatalf("create pallet failed: %v", err)
	}
	return pallet
}

func TestPalletAggregateByShipment(t *testing.T) {
	db := setupShippingRepositoryTest(t)
	repo := NewPalletRepository(db)

	createRepoPallet(t, repo, "PLT-1", 2, 20, uintPtr(5))
	createRepoPallet(t, repo, "PLT-2", 3, 45, uintPtr(5))
	deleted := createRepoPallet(t, repo, "PLT-3", 9, 90, uintPtr(5))
	createRepoPallet(t, repo, "PLT-4", 1, 1, nil)
	if err := repo.Delete(deleted.ID); err != nil {
		t.Fatalf("delete pallet failed: %v", err)
	}

	agg, err := repo.AggregateByShipment(5)
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	if agg.PalletCount != 2 || agg.BoxCount != 5 || agg.TotalQty != 65 {
		t.Fatalf("unexpected aggregate: %+v", agg)
	}
}

func TestPalletDetachByShipment(t *testing.T) {
	db := setupShippingRepositoryTest(t)
	repo := NewPalletRepository(db)

	a := createRepoPallet(t, repo, "DT-1", 1, 1, uintPtr(3))
	createRepoPallet(t, repo, "DT-2", 1, 1, uintPtr(3))
	if _, err := repo.UpdateStatusByShipment(3, "LOADED", time.Now()); err != nil {
		t.Fatalf("update status failed: %v", err)
	}

	affected, err := repo.DetachByShipment(3, "CLOSED", time.Now())
	if err != nil || affected != 2 {
		t.Fatalf("detach failed: affected=%d err=%v", affected, err)
	}
	ids, err := repo.ListIDsByShipment(3)
	if err != nil || len(ids) != 0 {
		t.Fatalf("expected no pallets left on shipment, got %v err=%v", ids, err)
	}
	got, err := repo.GetByID(a.ID)
	if err != nil || got == nil {
		t.Fatalf("get pallet failed: %v", err)
	}
	if got.Status != "CLOSED" || got.ShipmentID != nil {
		t.Fatalf("unexpected pallet after detach: %+v", got)
	}

	unassigned, err := repo.ListUnassigned("CLOSED")
	if err != nil || len(unassigned) != 2 {
		t.Fatalf("expected 2 unassigned pallets, got %d err=%v", len(unassigned), err)
	}
}

func TestPalletGetByIDWithBoxes(t *testing.T) {
	db := setupShippingRepositoryTest(t)
	palletRepo := NewPalletRepository(db)
	boxRepo := NewBoxRepository(db)
	part := createRepoPart(t, db, "P-PWB")

	pallet := createRepoPallet(t, palletRepo, "PWB-1", 0, 0, nil)
	createRepoBox(t, boxRepo, "PWB-B2", part.ID, 2, &pallet.ID)
	createRepoBox(t, boxRepo, "PWB-B1", part.ID, 1, &pallet.ID)

	got, err := palletRepo.GetByIDWithBoxes(pallet.ID)
	if err != nil || got == nil {
		t.Fatalf("get pallet failed: %v", err)
	}
	if len(got.Boxes) != 2 || got.Boxes[0].BoxNo != "PWB-B1" {
		t.Fatalf("unexpected boxes: %+v", got.Boxes)
	}
	if got.Boxes[0].Part == nil || got.Boxes[0].Part.PartCode != "P-PWB" {
		t.Fatalf("expected nested part preload")
	}

	missing, err := palletRepo.GetByID(9999)
	if err != nil || missing != nil {
		t.Fatalf("missing pallet should return nil, nil; got %v %v", missing, err)
	}
}
