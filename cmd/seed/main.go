package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/YouHyuksoo/HANES-sub002/internal/config"
	"github.com/YouHyuksoo/HANES-sub002/internal/logger"
	"github.com/YouHyuksoo/HANES-sub002/internal/models"
	"github.com/YouHyuksoo/HANES-sub002/internal/provider"
	"github.com/YouHyuksoo/HANES-sub002/internal/service"
)

type seedPart struct {
	code string
	name string
	kind string
}

var parts = []seedPart{
	{code: "WH-1001", name: "Main Harness Assy", kind: "FG"},
	{code: "WH-1002", name: "Door Harness Assy", kind: "FG"},
	{code: "WH-2001", name: "Engine Room Harness", kind: "FG"},
}

func main() {
	var (
		demo  bool
		grant string
	)
	flag.BoolVar(&demo, "demo", true, "写入演示用箱子/托盘/出货单")
	flag.StringVar(&grant, "grant", "", "绑定角色, 格式 subject=role1,role2")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}, false); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}
	if err := models.AutoMigrate(nil); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 种子数据不需要暴露指标
	container := provider.NewContainer(cfg, models.DB, nil)
	defer container.Close()

	partIDs := make(map[string]uint, len(parts))
	for _, item := range parts {
		part := &models.Part{PartCode: item.code, PartName: item.name, PartType: item.kind}
		if err := container.PartRepo.UpsertByCode(part); err != nil {
			stdLog.Fatalf("Failed to upsert part %s: %v", item.code, err)
		}
		stored, err := container.PartRepo.GetByCode(item.code)
		if err != nil || stored == nil {
			stdLog.Fatalf("Failed to load part %s: %v", item.code, err)
		}
		partIDs[item.code] = stored.ID
		stdLog.Printf("Part ready: %s (id=%d)", item.code, stored.ID)
	}

	if grant != "" {
		if err := grantRoles(container, grant); err != nil {
			stdLog.Fatalf("Failed to grant roles: %v", err)
		}
		stdLog.Printf("Roles granted: %s", grant)
	}

	if demo {
		if err := seedDemo(context.Background(), container, partIDs, stdLog); err != nil {
			stdLog.Fatalf("Failed to seed demo data: %v", err)
		}
	}
	stdLog.Printf("Seed finished")
}

// grantRoles 解析 subject=role1,role2 并覆盖绑定
func grantRoles(c *provider.Container, raw string) error {
	subject, roleList, ok := strings.Cut(raw, "=")
	subject = strings.TrimSpace(subject)
	if !ok || subject == "" {
		return fmt.Errorf("invalid grant %q", raw)
	}
	roles := make([]string, 0)
	for _, role := range strings.Split(roleList, ",") {
		if role = strings.TrimSpace(role); role != "" {
			roles = append(roles, role)
		}
	}
	if len(roles) == 0 {
		return errors.New("at least one role is required")
	}
	return c.AuthzService.SetSubjectRoles(subject, roles)
}

// seedDemo 每个品目两箱打一托，全部托盘装入一张出货单并完成装车
func seedDemo(ctx context.Context, c *provider.Container, partIDs map[string]uint, stdLog *log.Logger) error {
	const shipNo = "SHP-DEMO-0001"
	if existing, err := c.ShipmentService.GetByShipNo(ctx, shipNo); err == nil && existing != nil {
		stdLog.Printf("Demo shipment already exists: %s", shipNo)
		return nil
	} else if err != nil && !errors.Is(err, service.ErrNotFound) {
		return err
	}

	palletIDs := make([]uint, 0, len(parts))
	for i, item := range parts {
		boxIDs := make([]uint, 0, 2)
		for j := 1; j <= 2; j++ {
			boxNo := fmt.Sprintf("BOX-DEMO-%02d%02d", i+1, j)
			serials := make([]string, 0, 5)
			for k := 1; k <= 5; k++ {
				serials = append(serials, fmt.Sprintf("%s-%02d", boxNo, k))
			}
			box, err := c.BoxService.Create(ctx, service.CreateBoxInput{
				BoxNo:   boxNo,
				PartID:  partIDs[item.code],
				Qty:     len(serials),
				Serials: serials,
			})
			if err != nil {
				return fmt.Errorf("create box %s: %w", boxNo, err)
			}
			if _, err := c.BoxService.Close(ctx, box.ID); err != nil {
				return fmt.Errorf("close box %s: %w", boxNo, err)
			}
			boxIDs = append(boxIDs, box.ID)
		}

		palletNo := fmt.Sprintf("PLT-DEMO-%02d", i+1)
		pallet, err := c.PalletService.Create(ctx, palletNo)
		if err != nil {
			return fmt.Errorf("create pallet %s: %w", palletNo, err)
		}
		if _, err := c.PalletService.AddBoxes(ctx, pallet.ID, boxIDs); err != nil {
			return fmt.Errorf("add boxes to %s: %w", palletNo, err)
		}
		if _, err := c.PalletService.Close(ctx, pallet.ID); err != nil {
			return fmt.Errorf("close pallet %s: %w", palletNo, err)
		}
		palletIDs = append(palletIDs, pallet.ID)
	}

	shipDate := time.Now().UTC().Truncate(24 * time.Hour)
	shipment, err := c.ShipmentService.Create(ctx, service.CreateShipmentInput{
		ShipNo:      shipNo,
		ShipDate:    &shipDate,
		VehicleNo:   "12GA3456",
		DriverName:  "Demo Driver",
		Destination: "Ulsan Plant",
		Customer:    "Demo Motors",
	})
	if err != nil {
		return fmt.Errorf("create shipment: %w", err)
	}
	if _, err := c.ShipmentService.LoadPallets(ctx, shipment.ID, palletIDs); err != nil {
		return fmt.Errorf("load pallets: %w", err)
	}
	if _, err := c.ShipmentService.MarkAsLoaded(ctx, shipment.ID); err != nil {
		return fmt.Errorf("mark loaded: %w", err)
	}
	stdLog.Printf("Demo shipment created: %s (pallets=%d)", shipNo, len(palletIDs))
	return nil
}
