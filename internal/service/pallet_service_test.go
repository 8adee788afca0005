package service

import (
	"testing"

	"github.com/YouHyuksoo/HANES-sub002/internal/constants"
)

func TestPalletBoxLifecycleScenario(t *testing.T) {
	f := setupShippingServiceTest(t)
	part := f.createPart(t, "P-001")

	box := f.closedBox(t, "BOX-1", part.ID, 10)
	pallet, err := f.pallets.Create(f.ctx, "PLT-1")
	if err != nil {
		t.Fatalf("create pallet failed: %v", err)
	}
	if pallet.Status != constants.PalletStatusOpen || pallet.BoxCount != 0 || pallet.TotalQty != 0 {
		t.Fatalf("unexpected new pallet: %+v", pallet)
	}

	pallet, err = f.pallets.AddBoxes(f.ctx, pallet.ID, []uint{box.ID})
	if err != nil {
		t.Fatalf("add boxes failed: %v", err)
	}
	if pallet.BoxCount != 1 || pallet.TotalQty != 10 {
		t.Fatalf("expected 1/10 after add, got %d/%d", pallet.BoxCount, pallet.TotalQty)
	}

	pallet, err = f.pallets.RemoveBoxes(f.ctx, pallet.ID, []uint{box.ID})
	if err != nil {
		t.Fatalf("remove boxes failed: %v", err)
	}
	if pallet.BoxCount != 0 || pallet.TotalQty != 0 {
		t.Fatalf("expected 0/0 after remove, got %d/%d", pallet.BoxCount, pallet.TotalQty)
	}
	if reloaded := f.reloadBox(t, box.ID); reloaded.PalletID != nil {
		t.Fatalf("box should be unassigned after remove")
	}

	_, err = f.pallets.Close(f.ctx, pallet.ID)
	assertKind(t, err, ErrInvalidState)
	f.assertAggregatesConsistent(t)
}

func TestPalletAddBoxesIsAllOrNothing(t *testing.T) {
	f := setupShippingServiceTest(t)
	part := f.createPart(t, "P-001")
	good := f.closedBox(t, "BOX-G", part.ID, 5)
	open, err := f.boxes.Create(f.ctx, CreateBoxInput{BoxNo: "BOX-O", PartID: part.ID, Qty: 5})
	if err != nil {
		t.Fatalf("create box failed: %v", err)
	}
	pallet, _ := f.pallets.Create(f.ctx, "PLT-1")

	_, err = f.pallets.AddBoxes(f.ctx, pallet.ID, []uint{good.ID, open.ID})
	assertKind(t, err, ErrInvalidState)
	if reloaded := f.reloadBox(t, good.ID); reloaded.PalletID != nil {
		t.Fatalf("partial assignment must not be observable")
	}
	if p := f.reloadPallet(t, pallet.ID); p.BoxCount != 0 || p.TotalQty != 0 {
		t.Fatalf("pallet aggregate changed by failed batch: %d/%d", p.BoxCount, p.TotalQty)
	}

	_, err = f.pallets.AddBoxes(f.ctx, pallet.ID, []uint{good.ID, 9999})
	assertKind(t, err, ErrNotFound)
	if reloaded := f.reloadBox(t, good.ID); reloaded.PalletID != nil {
		t.Fatalf("missing id must abort the whole batch")
	}
}

func TestPalletAddBoxesInputValidation(t *testing.T) {
	f := setupShippingServiceTest(t)
	part := f.createPart(t, "P-001")
	box := f.closedBox(t, "BOX-1", part.ID, 1)
	pallet, _ := f.pallets.Create(f.ctx, "PLT-1")

	_, err := f.pallets.AddBoxes(f.ctx, pallet.ID, nil)
	assertKind(t, err, ErrValidation)

	_, err = f.pallets.AddBoxes(f.ctx, pallet.ID, []uint{box.ID, box.ID})
	assertKind(t, err, ErrValidation)

	tooMany := make([]uint, 11)
	for i := range tooMany {
		tooMany[i] = uint(i + 1)
	}
	_, err = f.pallets.AddBoxes(f.ctx, pallet.ID, tooMany)
	assertKind(t, err, ErrValidation)

	_, err = f.pallets.AddBoxes(f.ctx, 4242, []uint{box.ID})
	assertKind(t, err, ErrNotFound)
}

func TestPalletAddBoxesOwnership(t *testing.T) {
	f := setupShippingServiceTest(t)
	part := f.createPart(t, "P-001")
	box := f.closedBox(t, "BOX-1", part.ID, 2)
	other := f.closedBox(t, "BOX-2", part.ID, 3)
	palletA, _ := f.pallets.Create(f.ctx, "PLT-A")
	palletB, _ := f.pallets.Create(f.ctx, "PLT-B")

	if _, err := f.pallets.AddBoxes(f.ctx, palletA.ID, []uint{box.ID}); err != nil {
		t.Fatalf("add boxes failed: %v", err)
	}
	pallet, err := f.pallets.AddBoxes(f.ctx, palletA.ID, []uint{box.ID, other.ID})
	if err != nil {
		t.Fatalf("re-adding a box already on this pallet should be skipped: %v", err)
	}
	if pallet.BoxCount != 2 || pallet.TotalQty != 5 {
		t.Fatalf("expected 2/5, got %d/%d", pallet.BoxCount, pallet.TotalQty)
	}

	_, err = f.pallets.AddBoxes(f.ctx, palletB.ID, []uint{box.ID})
	assertKind(t, err, ErrConflict)

	_, err = f.pallets.RemoveBoxes(f.ctx, palletB.ID, []uint{box.ID})
	assertKind(t, err, ErrNotFound)
	f.assertAggregatesConsistent(t)
}

func TestPalletAddBoxesRejectedWhenLoaded(t *testing.T) {
	f := setupShippingServiceTest(t)
	part := f.createPart(t, "P-001")
	first := f.closedBox(t, "BOX-1", part.ID, 10)
	pallet := f.closedPallet(t, "PLT-1", first.ID)
	shipment, err := f.shipments.Create(f.ctx, CreateShipmentInput{ShipNo: "SHP-1"})
	if err != nil {
		t.Fatalf("create shipment failed: %v", err)
	}
	if _, err := f.pallets.AssignToShipment(f.ctx, pallet.ID, shipment.ID); err != nil {
		t.Fatalf("assign to shipment failed: %v", err)
	}

	valid := f.closedBox(t, "BOX-2", part.ID, 1)
	_, err = f.pallets.AddBoxes(f.ctx, pallet.ID, []uint{valid.ID})
	assertKind(t, err, ErrInvalidState)
	_, err = f.pallets.AddBoxes(f.ctx, pallet.ID, []uint{9999})
	assertKind(t, err, ErrInvalidState)
}

func TestPalletCloseReopen(t *testing.T) {
	f := setupShippingServiceTest(t)
	part := f.createPart(t, "P-001")
	box := f.closedBox(t, "BOX-1", part.ID, 2)
	pallet := f.closedPallet(t, "PLT-1", box.ID)
	if pallet.Status != constants.PalletStatusClosed || pallet.ClosedAt == nil || pallet.BoxCount != 1 {
		t.Fatalf("unexpected closed pallet: %+v", pallet)
	}

	_, err := f.pallets.RemoveBoxes(f.ctx, pallet.ID, []uint{box.ID})
	assertKind(t, err, ErrInvalidState)

	pallet, err = f.pallets.Reopen(f.ctx, pallet.ID)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if pallet.Status != constants.PalletStatusOpen || pallet.ClosedAt != nil {
		t.Fatalf("unexpected reopened pallet: %+v", pallet)
	}
	_, err = f.pallets.Reopen(f.ctx, pallet.ID)
	assertKind(t, err, ErrInvalidState)
}

func TestPalletShipmentAssignmentRules(t *testing.T) {
	f := setupShippingServiceTest(t)
	part := f.createPart(t, "P-001")
	pallet := f.closedPallet(t, "PLT-1", f.closedBox(t, "BOX-1", part.ID, 7).ID)
	shipA, _ := f.shipments.Create(f.ctx, CreateShipmentInput{ShipNo: "SHP-A"})
	shipB, _ := f.shipments.Create(f.ctx, CreateShipmentInput{ShipNo: "SHP-B"})

	_, err := f.pallets.AssignToShipment(f.ctx, pallet.ID, 4242)
	assertKind(t, err, ErrNotFound)

	loaded, err := f.pallets.AssignToShipment(f.ctx, pallet.ID, shipA.ID)
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if loaded.ID != shipA.ID || loaded.PalletCount != 1 || loaded.TotalQty != 7 {
		t.Fatalf("assign should return the recomputed shipment: %+v", loaded)
	}
	if p := f.reloadPallet(t, pallet.ID); p.Status != constants.PalletStatusLoaded {
		t.Fatalf("expected LOADED, got %s", p.Status)
	}
	if s := f.reloadShipment(t, shipA.ID); s.PalletCount != 1 || s.BoxCount != 1 || s.TotalQty != 7 {
		t.Fatalf("unexpected shipment aggregate: %d/%d/%d", s.PalletCount, s.BoxCount, s.TotalQty)
	}

	if _, err := f.pallets.AssignToShipment(f.ctx, pallet.ID, shipA.ID); err != nil {
		t.Fatalf("same shipment reassign should be a no-op: %v", err)
	}
	_, err = f.pallets.AssignToShipment(f.ctx, pallet.ID, shipB.ID)
	assertKind(t, err, ErrConflict)

	_, err = f.pallets.Reopen(f.ctx, pallet.ID)
	assertKind(t, err, ErrInvalidState)

	former, err := f.pallets.RemoveFromShipment(f.ctx, pallet.ID)
	if err != nil {
		t.Fatalf("remove from shipment failed: %v", err)
	}
	if former.ID != shipA.ID || former.PalletCount != 0 || former.TotalQty != 0 {
		t.Fatalf("remove should return the recomputed former shipment: %+v", former)
	}
	if p := f.reloadPallet(t, pallet.ID); p.Status != constants.PalletStatusClosed || p.ShipmentID != nil {
		t.Fatalf("unexpected pallet after remove: %+v", p)
	}
	if s := f.reloadShipment(t, shipA.ID); s.PalletCount != 0 || s.BoxCount != 0 || s.TotalQty != 0 {
		t.Fatalf("shipment aggregate should be zero: %d/%d/%d", s.PalletCount, s.BoxCount, s.TotalQty)
	}
	_, err = f.pallets.RemoveFromShipment(f.ctx, pallet.ID)
	assertKind(t, err, ErrInvalidState)

	if _, err := f.shipments.Cancel(f.ctx, shipB.ID, ""); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	_, err = f.pallets.AssignToShipment(f.ctx, pallet.ID, shipB.ID)
	assertKind(t, err, ErrInvalidState)
}

func TestPalletRemoveFromShipmentRequiresPreparing(t *testing.T) {
	f := setupShippingServiceTest(t)
	part := f.createPart(t, "P-001")
	pallet := f.closedPallet(t, "PLT-1", f.closedBox(t, "BOX-1", part.ID, 7).ID)
	shipment, _ := f.shipments.Create(f.ctx, CreateShipmentInput{ShipNo: "SHP-1"})
	if _, err := f.shipments.LoadPallets(f.ctx, shipment.ID, []uint{pallet.ID}); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if _, err := f.shipments.MarkAsLoaded(f.ctx, shipment.ID); err != nil {
		t.Fatalf("mark loaded failed: %v", err)
	}
	_, err := f.pallets.RemoveFromShipment(f.ctx, pallet.ID)
	assertKind(t, err, ErrInvalidState)
}

func TestPalletDeleteRules(t *testing.T) {
	f := setupShippingServiceTest(t)
	part := f.createPart(t, "P-001")
	box := f.closedBox(t, "BOX-1", part.ID, 1)
	pallet, _ := f.pallets.Create(f.ctx, "PLT-1")
	if _, err := f.pallets.AddBoxes(f.ctx, pallet.ID, []uint{box.ID}); err != nil {
		t.Fatalf("add boxes failed: %v", err)
	}

	err := f.pallets.Delete(f.ctx, pallet.ID)
	assertKind(t, err, ErrInvalidState)

	if _, err := f.pallets.RemoveBoxes(f.ctx, pallet.ID, []uint{box.ID}); err != nil {
		t.Fatalf("remove boxes failed: %v", err)
	}
	if err := f.pallets.Delete(f.ctx, pallet.ID); err != nil {
		t.Fatalf("delete empty pallet failed: %v", err)
	}
	_, err = f.pallets.Get(f.ctx, pallet.ID)
	assertKind(t, err, ErrNotFound)

	if _, err := f.pallets.Create(f.ctx, "PLT-1"); err != nil {
		t.Fatalf("pallet number should be reusable after soft delete: %v", err)
	}
	_, err = f.pallets.Create(f.ctx, "PLT-1")
	assertKind(t, err, ErrConflict)
}

func TestPalletSummaryByPart(t *testing.T) {
	f := setupShippingServiceTest(t)
	partA := f.createPart(t, "P-A")
	partB := f.createPart(t, "P-B")
	pallet := f.closedPallet(t, "PLT-1",
		f.closedBox(t, "BOX-1", partA.ID, 3).ID,
		f.closedBox(t, "BOX-2", partA.ID, 4).ID,
		f.closedBox(t, "BOX-3", partB.ID, 5).ID,
	)

	summary, err := f.pallets.Summary(f.ctx, pallet.ID)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if summary.BoxCount != 3 || summary.TotalQty != 12 || len(summary.Parts) != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Parts[0].PartCode != "P-A" || summary.Parts[0].BoxCount != 2 || summary.Parts[0].TotalQty != 7 {
		t.Fatalf("unexpected part A row: %+v", summary.Parts[0])
	}
	if summary.Parts[1].PartCode != "P-B" || summary.Parts[1].TotalQty != 5 {
		t.Fatalf("unexpected part B row: %+v", summary.Parts[1])
	}

	_, err = f.pallets.Summary(f.ctx, 4242)
	assertKind(t, err, ErrNotFound)
}

func TestSummaryVersionFollowsParentWrites(t *testing.T) {
	f := setupShippingServiceTest(t)
	part := f.createPart(t, "P-A")
	first := f.closedBox(t, "BOX-1", part.ID, 3)
	second := f.closedBox(t, "BOX-2", part.ID, 4)
	pallet, err := f.pallets.Create(f.ctx, "PLT-1")
	if err != nil {
		t.Fatalf("create pallet failed: %v", err)
	}
	if _, err := f.pallets.AddBoxes(f.ctx, pallet.ID, []uint{first.ID}); err != nil {
		t.Fatalf("add boxes failed: %v", err)
	}

	before, err := f.pallets.Summary(f.ctx, pallet.ID)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if before.Version != summaryVersion(f.reloadPallet(t, pallet.ID).UpdatedAt) {
		t.Fatalf("summary version should match the pallet row")
	}

	if _, err := f.boxes.AssignToPallet(f.ctx, second.ID, pallet.ID); err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	// 变更前算出的汇总即使在失效之后才写回缓存，也因版本不符而不会被读取
	current := summaryVersion(f.reloadPallet(t, pallet.ID).UpdatedAt)
	if before.Version == current {
		t.Fatalf("membership change must move the summary version")
	}
	after, err := f.pallets.Summary(f.ctx, pallet.ID)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if after.Version != current || after.BoxCount != 2 || after.TotalQty != 7 {
		t.Fatalf("unexpected refreshed summary: %+v", after)
	}

	shipment, err := f.shipments.Create(f.ctx, CreateShipmentInput{ShipNo: "SHP-1"})
	if err != nil {
		t.Fatalf("create shipment failed: %v", err)
	}
	stale, err := f.shipments.Summary(f.ctx, shipment.ID)
	if err != nil {
		t.Fatalf("shipment summary failed: %v", err)
	}
	customer := "ACME"
	if _, err := f.shipments.Update(f.ctx, shipment.ID, UpdateShipmentInput{Customer: &customer}); err != nil {
		t.Fatalf("update shipment failed: %v", err)
	}
	fresh, err := f.shipments.Summary(f.ctx, shipment.ID)
	if err != nil {
		t.Fatalf("shipment summary failed: %v", err)
	}
	if fresh.Version == stale.Version || fresh.Customer != "ACME" {
		t.Fatalf("header update must move the summary version: stale=%d fresh=%+v", stale.Version, fresh)
	}
}
