package constants

// 箱子状态常量
const (
	BoxStatusOpen    = "OPEN"
	BoxStatusClosed  = "CLOSED"
	BoxStatusShipped = "SHIPPED"
)

// 托盘状态常量
const (
	PalletStatusOpen    = "OPEN"
	PalletStatusClosed  = "CLOSED"
	PalletStatusLoaded  = "LOADED"
	PalletStatusShipped = "SHIPPED"
)

// 出货单状态常量
const (
	ShipmentStatusPreparing = "PREPARING"
	ShipmentStatusLoaded    = "LOADED"
	ShipmentStatusShipped   = "SHIPPED"
	ShipmentStatusDelivered = "DELIVERED"
	ShipmentStatusCanceled  = "CANCELED"
)

// ERP 同步标记
const (
	ErpSyncYes = "Y"
	ErpSyncNo  = "N"
)

// 出货事件类型
const (
	ShipmentEventTransition = "transition"
	ShipmentEventOverride   = "override"
)

// 托盘条码校验结果
const (
	PalletVerifyOK            = "VERIFIED"
	PalletVerifyNotFound      = "NOT_FOUND"
	PalletVerifyWrongShipment = "WRONG_SHIPMENT"
)

// 异步任务类型
const (
	TaskShipmentEvent = "shipment:event"
)

// 队列名称
const (
	QueueDefault  = "default"
	QueueShipping = "shipping"
)

// 授权角色
const (
	RoleShippingViewer   = "shipping_viewer"
	RoleShippingOperator = "shipping_operator"
	RoleShippingAdmin    = "shipping_admin"
)

// ShipmentStatuses 出货单全部合法状态
var ShipmentStatuses = []string{
	ShipmentStatusPreparing,
	ShipmentStatusLoaded,
	ShipmentStatusShipped,
	ShipmentStatusDelivered,
	ShipmentStatusCanceled,
}

// IsShipmentStatus 判断是否为合法出货单状态
func IsShipmentStatus(status string) bool {
	for _, s := range ShipmentStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// IsBoxStatus 判断是否为合法箱子状态
func IsBoxStatus(status string) bool {
	switch status {
	case BoxStatusOpen, BoxStatusClosed, BoxStatusShipped:
		return true
	}
	return false
}

// IsPalletStatus 判断是否为合法托盘状态
func IsPalletStatus(status string) bool {
	switch status {
	case PalletStatusOpen, PalletStatusClosed, PalletStatusLoaded, PalletStatusShipped:
		return true
	}
	return false
}
