package cache

import (
	"context"
	"fmt"
)

// PalletSummaryKey 托盘品目汇总缓存 key
func PalletSummaryKey(palletID uint) string {
	return fmt.Sprintf("shipping:pallet:%d:summary", palletID)
}

// ShipmentSummaryKey 出货单汇总缓存 key
func ShipmentSummaryKey(shipmentID uint) string {
	return fmt.Sprintf("shipping:shipment:%d:summary", shipmentID)
}

// InvalidateSummaries 删除受影响父级的汇总缓存，需在事务提交后调用
func InvalidateSummaries(ctx context.Context, palletIDs, shipmentIDs []uint) error {
	keys := SummaryKeys(palletIDs, shipmentIDs)
	if len(keys) == 0 {
		return nil
	}
	return Del(ctx, keys...)
}

// SummaryKeys 生成去重后的汇总缓存 key 列表
func SummaryKeys(palletIDs, shipmentIDs []uint) []string {
	seen := make(map[string]struct{}, len(palletIDs)+len(shipmentIDs))
	keys := make([]string, 0, len(palletIDs)+len(shipmentIDs))
	add := func(key string) {
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	for _, id := range palletIDs {
		if id > 0 {
			add(PalletSummaryKey(id))
		}
	}
	for _, id := range shipmentIDs {
		if id > 0 {
			add(ShipmentSummaryKey(id))
		}
	}
	return keys
}
