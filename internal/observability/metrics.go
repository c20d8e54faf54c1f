package observability

// OrdersCounter counts order placement activity. Place increments it once
// per attempt and once more per fully published order.
const OrdersCounter = "coursemarket.api.orders.count"

// EnrollmentsCounter counts enrollments created from OrderPlaced events.
const EnrollmentsCounter = "coursemarket.enrollments.count"

type Metrics interface {
	Increment(name string)
	IncCacheHit()
	IncCacheMiss()
	ObserveHTTP(method, route string, status int, durMs float64)
	ObserveKafka(processMs float64, ok bool)
}

type Noop struct{}

func (Noop) Increment(string)                         {}
func (Noop) IncCacheHit()                             {}
func (Noop) IncCacheMiss()                            {}
func (Noop) ObserveHTTP(string, string, int, float64) {}
func (Noop) ObserveKafka(float64, bool)               {}

func NewNoop() Noop { return Noop{} }
