package cfdi

import (
	"github.com/shopspring/decimal"
)

// TrasladoImporte calcula Base × TasaOCuota redondeado a 2 decimales.
func TrasladoImporte(base, tasa decimal.Decimal) decimal.Decimal {
	return base.Mul(tasa).Round(2)
}

// ComputeTotals recalcula Importe de cada concepto, el importe de sus impuestos, el nodo
// Impuestos del comprobante (agrupado por impuesto, tipo de factor y tasa), SubTotal,
// Descuento y Total.
func (c *Comprobante) ComputeTotals() {
	subTotal := decimal.Zero
	descuento := decimal.Zero
	hasDescuento := false

	type trasladoKey struct{ impuesto, factor, tasa string }
	var (
		trasOrder []trasladoKey
		trasAcc   = map[trasladoKey]*Traslado{}
		retOrder  []string
		retAcc    = map[string]decimal.Decimal{}
	)

	for i := range c.Conceptos {
		con := &c.Conceptos[i]
		con.Importe = con.Cantidad.Mul(con.ValorUnitario).Round(2)
		subTotal = subTotal.Add(con.Importe)
		if con.Descuento != nil {
			hasDescuento = true
			descuento = descuento.Add(*con.Descuento)
		}
		if con.Impuestos == nil {
			continue
		}
		for j := range con.Impuestos.Traslados {
			t := &con.Impuestos.Traslados[j]
			key := trasladoKey{impuesto: t.Impuesto, factor: t.TipoFactor}
			if t.TasaOCuota != nil {
				t.Importe = Dec(TrasladoImporte(t.Base, *t.TasaOCuota))
				key.tasa = FormatTasa(*t.TasaOCuota)
			}
			acc, ok := trasAcc[key]
			if !ok {
				acc = &Traslado{Impuesto: t.Impuesto, TipoFactor: t.TipoFactor, TasaOCuota: t.TasaOCuota}
				if t.Importe != nil {
					acc.Importe = Dec(decimal.Zero)
				}
				trasAcc[key] = acc
				trasOrder = append(trasOrder, key)
			}
			acc.Base = acc.Base.Add(t.Base)
			if t.Importe != nil && acc.Importe != nil {
				acc.Importe = Dec(acc.Importe.Add(*t.Importe))
			}
		}
		for j := range con.Impuestos.Retenciones {
			r := &con.Impuestos.Retenciones[j]
			r.Importe = TrasladoImporte(r.Base, r.TasaOCuota)
			if _, ok := retAcc[r.Impuesto]; !ok {
				retOrder = append(retOrder, r.Impuesto)
			}
			retAcc[r.Impuesto] = retAcc[r.Impuesto].Add(r.Importe)
		}
	}

	c.SubTotal = subTotal
	if hasDescuento {
		c.Descuento = Dec(descuento)
	} else {
		c.Descuento = nil
	}

	totalTras, totalRet := decimal.Zero, decimal.Zero
	if len(trasOrder) == 0 && len(retOrder) == 0 {
		c.Impuestos = nil
	} else {
		imp := &Impuestos{}
		hasTrasImporte := false
		for _, k := range trasOrder {
			t := trasAcc[k]
			imp.Traslados = append(imp.Traslados, *t)
			if t.Importe != nil {
				hasTrasImporte = true
				totalTras = totalTras.Add(*t.Importe)
			}
		}
		for _, k := range retOrder {
			imp.Retenciones = append(imp.Retenciones, RetencionTotal{Impuesto: k, Importe: retAcc[k]})
			totalRet = totalRet.Add(retAcc[k])
		}
		if hasTrasImporte {
			imp.TotalImpuestosTrasladados = Dec(totalTras)
		}
		if len(retOrder) > 0 {
			imp.TotalImpuestosRetenidos = Dec(totalRet)
		}
		c.Impuestos = imp
	}

	c.Total = subTotal.Sub(descuento).Add(totalTras).Sub(totalRet)
}
