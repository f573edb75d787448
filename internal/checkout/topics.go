package checkout

const (
	TopicOrderPlaced         = "orders.placed"
	TopicSellerNotifications = "sellers.notifications"
)

// Partition key = order code, so all events for one order keep their order.
func PartitionKey(orderCode string) []byte { return []byte(orderCode) }
