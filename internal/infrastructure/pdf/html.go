package pdf

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html/template"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"

	"github.com/jhoicas/integraciones-api/internal/domain/cfdi"
)

// HTMLRenderer genera la representación impresa en HTML autocontenido (QR incrustado como data URI).
type HTMLRenderer struct {
	tpl *template.Template
}

// NewHTMLRenderer compila la plantilla.
func NewHTMLRenderer() *HTMLRenderer {
	funcs := template.FuncMap{
		"qr": qrDataURI,
	}
	return &HTMLRenderer{tpl: template.Must(template.New("cfdi").Funcs(funcs).Parse(htmlTemplate))}
}

// Render arma la vista del documento y ejecuta la plantilla.
func (r *HTMLRenderer) Render(_ context.Context, doc *cfdi.Document) ([]byte, error) {
	v, err := NewView(doc)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := r.tpl.Execute(&buf, v); err != nil {
		return nil, fmt.Errorf("pdf: ejecutar plantilla HTML: %w", err)
	}
	return buf.Bytes(), nil
}

// QRPNG codifica content como QR (nivel M) de size×size píxeles en PNG.
func QRPNG(content string, size int) ([]byte, error) {
	code, err := qr.Encode(content, qr.M, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("pdf: codificar QR: %w", err)
	}
	code, err = barcode.Scale(code, size, size)
	if err != nil {
		return nil, fmt.Errorf("pdf: escalar QR: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, code); err != nil {
		return nil, fmt.Errorf("pdf: codificar PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func qrDataURI(content string) (template.URL, error) {
	img, err := QRPNG(content, 180)
	if err != nil {
		return "", err
	}
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(img)), nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="utf-8">
<title>{{.Titulo}} {{.Serie}}{{.Folio}}</title>
<style>
body{font-family:Helvetica,Arial,sans-serif;font-size:11px;color:#222;margin:24px}
h1{color:#00467f;font-size:18px;margin:0}
table{width:100%;border-collapse:collapse;margin-top:8px}
th{background:#00467f;color:#fff;text-align:left;padding:4px}
td{border-bottom:1px solid #ddd;padding:4px;vertical-align:top}
.num{text-align:right}
.muted{color:#646464}
.sello{font-family:monospace;font-size:8px;word-break:break-all}
.cancelado{color:#b00020;font-weight:bold;font-size:16px}
</style>
</head>
<body>
<header>
  <h1>{{.Emisor.Nombre}}</h1>
  <div>RFC: {{.Emisor.Rfc}} &middot; Régimen: {{.Emisor.Regimen}}</div>
  <div><strong>{{.Titulo}}</strong> {{.Serie}} {{.Folio}} &middot; Fecha: {{.Fecha}} &middot; Lugar de expedición: {{.LugarExpedicion}}</div>
  {{if .Cancelado}}<div class="cancelado">CANCELADO</div>{{end}}
</header>

<section>
  <h2>Receptor</h2>
  <div>{{.Receptor.Nombre}} &middot; RFC: {{.Receptor.Rfc}}</div>
  <div class="muted">Domicilio fiscal: {{.Receptor.DomicilioFiscal}} &middot; Régimen: {{.Receptor.Regimen}} &middot; Uso CFDI: {{.Receptor.UsoCFDI}}</div>
  {{range .Relacionados}}<div class="muted">CFDI relacionado: {{.}}</div>{{end}}
</section>

<table>
  <thead><tr><th>Clave</th><th>Cantidad</th><th>Unidad</th><th>Descripción</th><th class="num">Valor unitario</th><th class="num">Importe</th></tr></thead>
  <tbody>
  {{range .Conceptos}}<tr>
    <td>{{.ClaveProdServ}}{{if .NoIdentificacion}}<br><span class="muted">{{.NoIdentificacion}}</span>{{end}}</td>
    <td>{{.Cantidad}}</td>
    <td>{{.ClaveUnidad}} {{.Unidad}}</td>
    <td>{{.Descripcion}}</td>
    <td class="num">{{.ValorUnitario}}</td>
    <td class="num">{{.Importe}}</td>
  </tr>{{end}}
  </tbody>
</table>

{{if .Pagos}}<table>
  <thead><tr><th>Fecha de pago</th><th>Forma</th><th>Documento</th><th>Parcialidad</th><th class="num">Saldo anterior</th><th class="num">Pagado</th><th class="num">Saldo insoluto</th></tr></thead>
  <tbody>
  {{range $p := .Pagos}}{{range $p.Documentos}}<tr>
    <td>{{$p.FechaPago}}</td><td>{{$p.FormaDePagoP}}</td><td>{{.IdDocumento}}</td><td>{{.NumParcialidad}}</td>
    <td class="num">{{.ImpSaldoAnt}}</td><td class="num">{{.ImpPagado}}</td><td class="num">{{.ImpSaldoInsoluto}}</td>
  </tr>{{end}}{{end}}
  </tbody>
</table>{{end}}

<table>
  <tr><td class="num">Subtotal</td><td class="num">{{.SubTotal}}</td></tr>
  {{if .Descuento}}<tr><td class="num">Descuento</td><td class="num">{{.Descuento}}</td></tr>{{end}}
  {{range .Impuestos}}<tr><td class="num">{{.Nombre}}</td><td class="num">{{.Importe}}</td></tr>{{end}}
  <tr><td class="num"><strong>Total {{.Moneda}}</strong></td><td class="num"><strong>{{.Total}}</strong></td></tr>
</table>
<p class="muted">Forma de pago: {{.FormaPago}} &middot; Método de pago: {{.MetodoPago}} &middot; Exportación: {{.Exportacion}}</p>

{{if .Timbrado}}<footer>
  <table><tr>
    <td style="width:190px"><img alt="QR" src="{{qr .QRURL}}"></td>
    <td>
      <div><strong>Folio fiscal (UUID):</strong> {{.UUID}}</div>
      <div><strong>Fecha de certificación:</strong> {{.FechaTimbre}} &middot; <strong>RFC PAC:</strong> {{.RfcProvCertif}}</div>
      <div><strong>No. certificado emisor:</strong> {{.NoCertificado}} &middot; <strong>No. certificado SAT:</strong> {{.NoCertificadoSAT}}</div>
      <div><strong>Sello digital del CFDI:</strong><div class="sello">{{.SelloCFD}}</div></div>
      <div><strong>Sello del SAT:</strong><div class="sello">{{.SelloSAT}}</div></div>
      <div><strong>Cadena original del complemento de certificación digital del SAT:</strong><div class="sello">{{.CadenaTimbre}}</div></div>
    </td>
  </tr></table>
  <p class="muted">Este documento es una representación impresa de un CFDI.</p>
</footer>{{else}}<p class="cancelado">Vista previa sin validez fiscal</p>{{end}}
</body>
</html>
`
