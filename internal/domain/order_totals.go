package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderNumberFor 根据当前订单数生成下一个订单号。
// 计数与插入之间没有原子保证，并发创建可能得到相同编号，由 order_number 唯一索引兜底。
func OrderNumberFor(count int64) string {
	return fmt.Sprintf("ORD-%04d", count+1)
}

// LineTotal 计算订单行金额
func LineTotal(quantity int, price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}

// Subtotal 汇总订单行金额
func Subtotal(items []OrderItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Total)
	}
	return sum
}

// Totals 为一次金额重算的结果
type Totals struct {
	Subtotal      decimal.Decimal
	TotalAmount   decimal.Decimal
	DueAmount     decimal.Decimal
	PaymentStatus PaymentStatus
}

// ComputeCreateTotals 计算下单时的金额。
// 下单时应付余额不做下限截断，超付时 DueAmount 为负。
func ComputeCreateTotals(subtotal, courierCharge, paid decimal.Decimal) Totals {
	total := subtotal.Add(courierCharge)
	due := total.Sub(paid)
	return Totals{
		Subtotal:      subtotal,
		TotalAmount:   total,
		DueAmount:     due,
		PaymentStatus: DerivePaymentStatus(total, paid, due),
	}
}

// ComputeEditTotals 计算编辑后的金额，应付余额截断为不小于 0
func ComputeEditTotals(subtotal, courierCharge, paid decimal.Decimal) Totals {
	total := subtotal.Add(courierCharge)
	due := total.Sub(paid)
	if due.IsNegative() {
		due = decimal.Zero
	}
	return Totals{
		Subtotal:      subtotal,
		TotalAmount:   total,
		DueAmount:     due,
		PaymentStatus: DerivePaymentStatus(total, paid, due),
	}
}

// DerivePaymentStatus 由金额推导支付状态：
// 已付且应收恰为零为 paid；部分支付为 partial；其余为 due。
func DerivePaymentStatus(total, paid, due decimal.Decimal) PaymentStatus {
	switch {
	case paid.IsPositive() && due.IsZero():
		return PaymentStatusPaid
	case paid.IsPositive() && paid.LessThan(total):
		return PaymentStatusPartial
	default:
		return PaymentStatusDue
	}
}

// ApplyTotals 将金额写回订单
func (o *Order) ApplyTotals(t Totals) {
	o.Subtotal = t.Subtotal
	o.TotalAmount = t.TotalAmount
	o.DueAmount = t.DueAmount
	o.PaymentStatus = t.PaymentStatus
}
