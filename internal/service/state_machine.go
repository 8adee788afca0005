package service

import "github.com/YouHyuksoo/HANES-sub002/internal/constants"

// shipmentTransitions 出货单命名流转（不含管理员强制变更）
var shipmentTransitions = map[string][]string{
	constants.ShipmentStatusPreparing: {constants.ShipmentStatusLoaded, constants.ShipmentStatusCanceled},
	constants.ShipmentStatusLoaded:    {constants.ShipmentStatusShipped, constants.ShipmentStatusCanceled},
	constants.ShipmentStatusShipped:   {constants.ShipmentStatusDelivered},
}

// canTransitShipment 判断出货单能否按命名流转从 from 到 to
func canTransitShipment(from, to string) bool {
	for _, next := range shipmentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// isShipmentTerminal 终态不允许任何结构变更
func isShipmentTerminal(status string) bool {
	return len(shipmentTransitions[status]) == 0
}

// isShipmentHeaderEditable 出货单抬头信息可编辑的状态
func isShipmentHeaderEditable(status string) bool {
	return status == constants.ShipmentStatusPreparing || status == constants.ShipmentStatusLoaded
}
