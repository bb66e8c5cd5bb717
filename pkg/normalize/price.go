package normalize

import (
	"fmt"

	"github.com/Sternrassler/ucp-catalog-adapter/pkg/model"
	"github.com/shopspring/decimal"
)

// PriceWithTax returns amount plus tax at rate, rounded half-up to cents.
func PriceWithTax(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Add(amount.Mul(rate)).Round(2)
}

// BasePrice returns the currency-resolved amount and currency of v before
// tax. A converted amount is formatted with two fraction digits; otherwise
// the upstream amount is returned verbatim.
func (n *Normalizer) BasePrice(v model.UpstreamVariant) (string, string) {
	currency := v.Price.CurrencyCode
	if currency == "" {
		currency = n.cfg.DefaultCurrency
	}

	amount := v.Price.Amount

	if target, ok := n.overrideCurrency(v); ok && target != currency {
		if value, ok := n.convert(amount, currency, target); ok {
			amount = value.StringFixed(2)
			currency = target
		}
	}

	return amount, currency
}

// resolvePrice returns the display price and currency of v.
func (n *Normalizer) resolvePrice(v model.UpstreamVariant) (string, string) {
	amount, currency := n.BasePrice(v)
	if n.cfg.TaxIncluded {
		return amount, currency
	}

	value, err := decimal.NewFromString(amount)
	if err != nil {
		n.logger.Warn().
			Str("variant_id", v.ID).
			Str("amount", amount).
			Msg("Unparseable price, tax not applied")
		return amount, currency
	}
	return PriceWithTax(value, n.cfg.TaxRate).StringFixed(2), currency
}

// currencyResult is the outcome of the override hook.
type currencyResult struct {
	Currency string
	Err      error
}

// conversionResult is the outcome of the exchange hook.
type conversionResult struct {
	Amount decimal.Decimal
	Err    error
}

func callOverride(fn CurrencyOverrideFunc, v model.UpstreamVariant) (res currencyResult) {
	defer func() {
		if r := recover(); r != nil {
			res = currencyResult{Err: fmt.Errorf("currency override panicked: %v", r)}
		}
	}()

	currency, err := fn(v)
	return currencyResult{Currency: currency, Err: err}
}

func callExchange(fn ExchangeRateFunc, amount decimal.Decimal, from, to string) (res conversionResult) {
	defer func() {
		if r := recover(); r != nil {
			res = conversionResult{Err: fmt.Errorf("exchange rate panicked: %v", r)}
		}
	}()

	converted, err := fn(amount, from, to)
	return conversionResult{Amount: converted, Err: err}
}

// overrideCurrency reports the hook's currency, or false when there is no
// hook or it failed.
func (n *Normalizer) overrideCurrency(v model.UpstreamVariant) (string, bool) {
	if n.currencyOverride == nil {
		return "", false
	}

	res := callOverride(n.currencyOverride, v)
	if res.Err != nil {
		ucpCurrencyFallbacksTotal.WithLabelValues("override").Inc()
		n.logger.Warn().Err(res.Err).Str("variant_id", v.ID).Msg("Currency override failed")
		return "", false
	}
	if res.Currency == "" {
		return "", false
	}
	return res.Currency, true
}

// convert reports the converted amount, or false when there is no hook, the
// amount is unparseable, or the hook failed.
func (n *Normalizer) convert(amount, from, to string) (decimal.Decimal, bool) {
	if n.exchangeRate == nil {
		ucpCurrencyFallbacksTotal.WithLabelValues("exchange").Inc()
		n.logger.Debug().Str("from", from).Str("to", to).Msg("No exchange rate hook, keeping currency")
		return decimal.Zero, false
	}

	value, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, false
	}

	res := callExchange(n.exchangeRate, value, from, to)
	if res.Err != nil {
		ucpCurrencyFallbacksTotal.WithLabelValues("exchange").Inc()
		n.logger.Warn().
			Err(res.Err).
			Str("from", from).
			Str("to", to).
			Msg("Currency conversion failed, keeping original price")
		return decimal.Zero, false
	}
	return res.Amount, true
}
