// Package pdf genera la representación impresa de un CFDI 4.0 en HTML y PDF.
//
// Layout de la página Carta:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Emisor + RFC + Régimen │ Tipo + Serie-Folio + Fecha │
//	│  ─────────────────────────────────────────────────────────  │
//	│  RECEPTOR: Nombre + RFC + CP + Régimen + Uso CFDI           │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Clave | Cant | Unidad | Descripción | P.Unit | Imp. │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTALES: Subtotal / Descuento / Impuestos / TOTAL          │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TIMBRE: QR + UUID + sellos + cadena del TFD                │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/jhoicas/integraciones-api/internal/domain/cfdi"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorWhite   = &props.Color{Red: 255, Green: 255, Blue: 255}
	colorRed     = &props.Color{Red: 176, Green: 0, Blue: 32}
)

// ── Generator ─────────────────────────────────────────────────────────────────

// MarotoPDFGenerator genera el PDF con Maroto v2.
type MarotoPDFGenerator struct{}

// NewMarotoPDFGenerator construye el generador.
func NewMarotoPDFGenerator() *MarotoPDFGenerator { return &MarotoPDFGenerator{} }

// Render genera el PDF del documento y devuelve sus bytes.
func (g *MarotoPDFGenerator) Render(_ context.Context, doc *cfdi.Document) ([]byte, error) {
	v, err := NewView(doc)
	if err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageSize(pagesize.Letter).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle(v.Titulo+" "+v.FileName("pdf"), true).
		WithAuthor(v.Emisor.Nombre, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(v))
	if v.Cancelado {
		m.AddRows(row.New(8).Add(col.New(12).Add(text.New("CANCELADO", props.Text{
			Style: fontstyle.Bold, Size: 14, Align: align.Center, Color: colorRed,
		}))))
	}
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(receptorRow(v))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	m.AddRows(tableDetailRows(v.Conceptos)...)

	if len(v.Pagos) > 0 {
		m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
		m.AddRows(pagosRows(v.Pagos)...)
	}

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRows(v)...)

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(timbreRows(v)...)

	out, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return out.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

// headerRow: emisor (izq) y tipo, serie-folio y fecha (der).
func headerRow(v *View) core.Row {
	return row.New(20).Add(
		col.New(7).Add(
			text.New(v.Emisor.Nombre, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("RFC: "+v.Emisor.Rfc, props.Text{Size: 9, Top: 9, Color: colorGray}),
			text.New("Régimen: "+v.Emisor.Regimen, props.Text{Size: 8, Top: 14, Color: colorGray}),
		),
		col.New(5).Add(
			text.New(v.Titulo, props.Text{
				Style: fontstyle.Bold, Size: 9, Align: align.Right, Color: colorPrimary, Top: 1,
			}),
			text.New(nonEmpty(v.Serie+v.Folio, "S/N"), props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 6,
			}),
			text.New("Fecha: "+v.Fecha+"  CP: "+v.LugarExpedicion, props.Text{
				Size: 8, Align: align.Right, Top: 13, Color: colorGray,
			}),
		),
	)
}

func receptorRow(v *View) core.Row {
	return row.New(16).Add(
		col.New(12).Add(
			text.New("RECEPTOR", props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}),
			text.New(v.Receptor.Nombre, props.Text{Style: fontstyle.Bold, Size: 10, Top: 6}),
			text.New(fmt.Sprintf("RFC: %s   |   Domicilio fiscal: %s   |   Régimen: %s   |   Uso CFDI: %s",
				v.Receptor.Rfc,
				nonEmpty(v.Receptor.DomicilioFiscal, "-"),
				v.Receptor.Regimen,
				v.Receptor.UsoCFDI,
			), props.Text{Size: 8, Top: 12, Color: colorGray}),
		),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorWhite, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Clave", 2, align.Left),
		h("Cant.", 1, align.Center),
		h("Unidad", 1, align.Center),
		h("Descripción", 4, align.Left),
		h("Valor unit.", 2, align.Right),
		h("Importe", 2, align.Right),
	).WithStyle(&props.Cell{BackgroundColor: colorPrimary})
}

func tableDetailRows(conceptos []ConceptoView) []core.Row {
	result := make([]core.Row, 0, len(conceptos))
	for _, c := range conceptos {
		result = append(result, row.New(7).Add(
			col.New(2).Add(text.New(c.ClaveProdServ, props.Text{Size: 8, Top: 1, Left: 1})),
			col.New(1).Add(text.New(c.Cantidad, props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(1).Add(text.New(c.ClaveUnidad, props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(4).Add(text.New(c.Descripcion, props.Text{Size: 8, Top: 1, Left: 1})),
			col.New(2).Add(text.New(c.ValorUnitario, props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(2).Add(text.New(c.Importe, props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
		))
	}
	return result
}

// pagosRows: documentos relacionados del complemento de pagos.
func pagosRows(pagos []PagoView) []core.Row {
	rows := []core.Row{row.New(6).Add(col.New(12).Add(
		text.New("COMPLEMENTO DE PAGO", props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}),
	))}
	for _, p := range pagos {
		rows = append(rows, row.New(5).Add(col.New(12).Add(text.New(
			fmt.Sprintf("Pago %s  |  Forma: %s  |  Moneda: %s  |  Monto: %s", p.FechaPago, p.FormaDePagoP, p.MonedaP, p.Monto),
			props.Text{Size: 8, Top: 1},
		))))
		for _, d := range p.Documentos {
			rows = append(rows, row.New(5).Add(col.New(12).Add(text.New(
				fmt.Sprintf("%s  parcialidad %d  saldo anterior %s  pagado %s  insoluto %s",
					d.IdDocumento, d.NumParcialidad, d.ImpSaldoAnt, d.ImpPagado, d.ImpSaldoInsoluto),
				props.Text{Size: 7, Top: 1, Left: 3, Color: colorGray},
			))))
		}
	}
	return rows
}

func totalsRows(v *View) []core.Row {
	totalRow := func(label, value string, grand bool) core.Row {
		p := props.Text{Size: 9, Align: align.Right, Right: 1}
		if grand {
			p = props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Right: 1}
		}
		return row.New(5).Add(
			col.New(6),
			col.New(3).Add(text.New(label, props.Text{Style: fontstyle.Bold, Size: p.Size, Align: align.Right, Right: 2, Color: p.Color})),
			col.New(3).Add(text.New(value, p)),
		)
	}
	rows := []core.Row{totalRow("Subtotal:", v.SubTotal, false)}
	if v.Descuento != "" {
		rows = append(rows, totalRow("Descuento:", v.Descuento, false))
	}
	for _, t := range v.Impuestos {
		rows = append(rows, totalRow(t.Nombre+":", t.Importe, false))
	}
	rows = append(rows, totalRow("TOTAL "+v.Moneda+":", v.Total, true))
	rows = append(rows, row.New(5).Add(col.New(12).Add(text.New(
		fmt.Sprintf("Forma de pago: %s   |   Método de pago: %s   |   Exportación: %s",
			nonEmpty(v.FormaPago, "-"), nonEmpty(v.MetodoPago, "-"), v.Exportacion),
		props.Text{Size: 7, Top: 1, Color: colorGray},
	))))
	return rows
}

// timbreRows: QR + datos del TFD + sellos partidos.
func timbreRows(v *View) []core.Row {
	if !v.Timbrado {
		return []core.Row{row.New(10).Add(col.New(12).Add(
			text.New("Vista previa sin validez fiscal", props.Text{
				Style: fontstyle.Bold, Size: 9, Align: align.Center, Color: colorRed, Top: 2,
			}),
		))}
	}
	rows := []core.Row{
		row.New(40).Add(
			col.New(3).Add(code.NewQr(v.QRURL, props.Rect{Percent: 95, Center: true})),
			col.New(9).Add(
				text.New("Folio fiscal: "+v.UUID, props.Text{Style: fontstyle.Bold, Size: 9, Top: 2, Left: 3}),
				text.New("Fecha de certificación: "+v.FechaTimbre, props.Text{Size: 8, Top: 9, Left: 3}),
				text.New("RFC del PAC: "+v.RfcProvCertif, props.Text{Size: 8, Top: 14, Left: 3}),
				text.New("No. certificado emisor: "+v.NoCertificado, props.Text{Size: 8, Top: 19, Left: 3}),
				text.New("No. certificado SAT: "+v.NoCertificadoSAT, props.Text{Size: 8, Top: 24, Left: 3}),
				text.New("Este documento es una representación impresa de un CFDI.", props.Text{
					Style: fontstyle.Bold, Size: 8, Top: 31, Left: 3, Color: colorPrimary,
				}),
			),
		),
	}
	rows = append(rows, chunkRows("Sello digital del CFDI:", v.SelloCFD)...)
	rows = append(rows, chunkRows("Sello del SAT:", v.SelloSAT)...)
	rows = append(rows, chunkRows("Cadena original del complemento de certificación digital del SAT:", v.CadenaTimbre)...)
	return rows
}

func chunkRows(label, value string) []core.Row {
	rows := []core.Row{row.New(5).Add(col.New(12).Add(
		text.New(label, props.Text{Style: fontstyle.Bold, Size: 7, Top: 1}),
	))}
	for _, chunk := range splitEvery(value, 110) {
		rows = append(rows, row.New(3.5).Add(col.New(12).Add(
			text.New(chunk, props.Text{Size: 6, Color: colorGray, Left: 2}),
		)))
	}
	return rows
}

// ── helpers ───────────────────────────────────────────────────────────────────

// splitEvery divide s en trozos de max n caracteres.
func splitEvery(s string, n int) []string {
	var parts []string
	for len(s) > n {
		parts = append(parts, s[:n])
		s = s[n:]
	}
	if s != "" {
		parts = append(parts, s)
	}
	return parts
}
