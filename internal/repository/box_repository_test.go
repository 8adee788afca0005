package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/YouHyuksoo/HANES-sub002/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupShippingRepositoryTest(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:shipping_repo_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

func createRepoPart(t *testing.T, db *gorm.DB, code string) *models.Part {
	t.Helper()
	part := &models.Part{PartCode: code, PartName: "part " + code, PartType: "FG"}
	if err := db.Create(part).Error; err != nil {
		t.Fatalf("create part failed: %v", err)
	}
	return part
}

func createRepoBox(t *testing.T, repo *GormBoxRepository, boxNo string, partID uint, qty int, palletID *uint) *models.Box {
	t.Helper()
	box := &models.Box{
		BoxNo:      boxNo,
		PartID:     partID,
		Qty:        qty,
		SerialList: models.StringArray{},
		Status:     "CLOSED",
		PalletID:   palletID,
	}
	if err := repo.Create(box); err != nil {
		t.Fatalf("create box failed: %v", err)
	}
	return box
}

func uintPtr(v uint) *uint {
	return &v
}

func TestBoxAggregateByPalletExcludesDeleted(t *testing.T) {
	db := setupShippingRepositoryTest(t)
	repo := NewBoxRepository(db)
	part := createRepoPart(t, db, "P-100")

	createRepoBox(t, repo, "BOX-1", part.ID, 10, uintPtr(7))
	createRepoBox(t, repo, "BOX-2", part.ID, 5, uintPtr(7))
	removed := createRepoBox(t, repo, "BOX-3", part.ID, 99, uintPtr(7))
	createRepoBox(t, repo, "BOX-4", part.ID, 3, uintPtr(8))

	if err := repo.Delete(removed.ID); err != nil {
		t.Fatalf("delete box failed: %v", err)
	}

	agg, err := repo.AggregateByPallet(7)
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	if agg.BoxCount != 2 || agg.TotalQty != 15 {
		t.Fatalf("unexpected aggregate: %+v", agg)
	}

	empty, err := repo.AggregateByPallet(999)
	if err != nil {
		t.Fatalf("aggregate empty failed: %v", err)
	}
	if empty.BoxCount != 0 || empty.TotalQty != 0 {
		t.Fatalf("empty pallet should aggregate to zero, got %+v", empty)
	}
}

func TestBoxNoReusableAfterSoftDelete(t *testing.T) {
	db := setupShippingRepositoryTest(t)
	repo := NewBoxRepository(db)
	part := createRepoPart(t, db, "P-200")

	first := createRepoBox(t, repo, "BOX-DUP", part.ID, 1, nil)
	duplicate := &models.Box{BoxNo: "BOX-DUP", PartID: part.ID, Status: "OPEN", SerialList: models.StringArray{}}
	if err := repo.Create(duplicate); err == nil {
		t.Fatalf("expected unique violation for live duplicate box_no")
	}

	if err := repo.Delete(first.ID); err != nil {
		t.Fatalf("delete box failed: %v", err)
	}
	again := &models.Box{BoxNo: "BOX-DUP", PartID: part.ID, Status: "OPEN", SerialList: models.StringArray{}}
	if err := repo.Create(again); err != nil {
		t.Fatalf("box_no should be reusable after delete: %v", err)
	}
}

func TestBoxListFilters(t *testing.T) {
	db := setupShippingRepositoryTest(t)
	repo := NewBoxRepository(db)
	partA := createRepoPart(t, db, "P-A")
	partB := createRepoPart(t, db, "P-B")

	createRepoBox(t, repo, "BX-A-001", partA.ID, 1, nil)
	createRepoBox(t, repo, "BX-A-002", partA.ID, 2, uintPtr(3))
	createRepoBox(t, repo, "BX-B-001", partB.ID, 3, nil)

	items, total, err := repo.List(BoxListFilter{BoxNo: "a-00", Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("box_no filter want 2 got total=%d len=%d", total, len(items))
	}

	items, total, err = repo.List(BoxListFilter{PartID: partA.ID, Unassigned: true})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 1 || items[0].BoxNo != "BX-A-001" {
		t.Fatalf("unexpected unassigned list: total=%d items=%v", total, items)
	}
	if items[0].Part == nil || items[0].Part.PartCode != "P-A" {
		t.Fatalf("expected part preloaded")
	}

	unassigned, err := repo.ListUnassigned("CLOSED")
	if err != nil {
		t.Fatalf("list unassigned failed: %v", err)
	}
	if len(unassigned) != 2 {
		t.Fatalf("expected 2 unassigned closed boxes, got %d", len(unassigned))
	}
}

func TestBoxSummarizeByPart(t *testing.T) {
	db := setupShippingRepositoryTest(t)
	repo := NewBoxRepository(db)
	partA := createRepoPart(t, db, "P-SUM-A")
	partB := createRepoPart(t, db, "P-SUM-B")

	createRepoBox(t, repo, "S-1", partA.ID, 10, uintPtr(1))
	createRepoBox(t, repo, "S-2", partA.ID, 20, uintPtr(2))
	createRepoBox(t, repo, "S-3", partB.ID, 7, uintPtr(2))
	createRepoBox(t, repo, "S-4", partB.ID, 100, uintPtr(9))

	rows, err := repo.SummarizeByPart([]uint{1, 2})
	if err != nil {
		t.Fatalf("summarize failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 part rows, got %d", len(rows))
	}
	if rows[0].PartCode != "P-SUM-A" || rows[0].BoxCount != 2 || rows[0].TotalQty != 30 {
		t.Fatalf("unexpected part A row: %+v", rows[0])
	}
	if rows[1].PartCode != "P-SUM-B" || rows[1].BoxCount != 1 || rows[1].TotalQty != 7 {
		t.Fatalf("unexpected part B row: %+v", rows[1])
	}
}

func TestBoxSetPallet(t *testing.T) {
	db := setupShippingRepositoryTest(t)
	repo := NewBoxRepository(db)
	part := createRepoPart(t, db, "P-SET")
	a := createRepoBox(t, repo, "SET-1", part.ID, 1, nil)
	b := createRepoBox(t, repo, "SET-2", part.ID, 1, nil)

	affected, err := repo.SetPallet([]uint{a.ID, b.ID}, uintPtr(4), time.Now())
	if err != nil || affected != 2 {
		t.Fatalf("set pallet failed: affected=%d err=%v", affected, err)
	}
	boxes, err := repo.ListByPallet(4)
	if err != nil || len(boxes) != 2 {
		t.Fatalf("expected 2 boxes on pallet, got %d err=%v", len(boxes), err)
	}

	if _, err := repo.SetPallet([]uint{a.ID}, nil, time.Now()); err != nil {
		t.Fatalf("clear pallet failed: %v", err)
	}
	got, err := repo.GetByID(a.ID)
	if err != nil || got == nil {
		t.Fatalf("get box failed: %v", err)
	}
	if got.PalletID != nil {
		t.Fatalf("pallet id should be cleared")
	}
}
