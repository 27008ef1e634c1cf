// Package sat contiene catálogos y validaciones alineados al Anexo 20 (CFDI 4.0)
// del Servicio de Administración Tributaria (México).
package sat

// =============================================================================
// c_TipoDeComprobante
// =============================================================================

const (
	TipoComprobanteIngreso  = "I"
	TipoComprobanteEgreso   = "E"
	TipoComprobanteTraslado = "T"
	TipoComprobanteNomina   = "N"
	TipoComprobantePago     = "P"
)

// ValidTiposComprobante tipos de comprobante válidos.
var ValidTiposComprobante = map[string]bool{
	TipoComprobanteIngreso: true, TipoComprobanteEgreso: true, TipoComprobanteTraslado: true,
	TipoComprobanteNomina: true, TipoComprobantePago: true,
}

// =============================================================================
// c_FormaPago (códigos de uso frecuente)
// =============================================================================

const (
	FormaPagoEfectivo            = "01"
	FormaPagoChequeNominativo    = "02"
	FormaPagoTransferencia       = "03"
	FormaPagoTarjetaCredito      = "04"
	FormaPagoMonederoElectronico = "05"
	FormaPagoCondonacion         = "15"
	FormaPagoCompensacion        = "17"
	FormaPagoTarjetaDebito       = "28"
	FormaPagoTarjetaServicios    = "29"
	FormaPagoAplicacionAnticipos = "30"
	FormaPagoPorDefinir          = "99"
)

// ValidFormasPago formas de pago válidas.
var ValidFormasPago = map[string]bool{
	FormaPagoEfectivo: true, FormaPagoChequeNominativo: true, FormaPagoTransferencia: true,
	FormaPagoTarjetaCredito: true, FormaPagoMonederoElectronico: true, "06": true, "08": true,
	"12": true, "13": true, "14": true, FormaPagoCondonacion: true, FormaPagoCompensacion: true,
	"23": true, "24": true, "25": true, "26": true, "27": true, FormaPagoTarjetaDebito: true,
	FormaPagoTarjetaServicios: true, FormaPagoAplicacionAnticipos: true, "31": true,
	FormaPagoPorDefinir: true,
}

// =============================================================================
// c_MetodoPago
// =============================================================================

const (
	MetodoPagoUnaExhibicion = "PUE" // Pago en una sola exhibición
	MetodoPagoParcialidades = "PPD" // Pago en parcialidades o diferido
)

// =============================================================================
// c_Moneda (subconjunto)
// =============================================================================

const (
	MonedaMXN       = "MXN"
	MonedaUSD       = "USD"
	MonedaEUR       = "EUR"
	MonedaSinMoneda = "XXX" // obligatoria en comprobantes de pago y traslado sin valor
)

// ValidMonedas monedas aceptadas por el generador.
var ValidMonedas = map[string]bool{
	MonedaMXN: true, MonedaUSD: true, MonedaEUR: true, MonedaSinMoneda: true,
	"CAD": true, "GBP": true, "JPY": true, "COP": true,
}

// DecimalesMoneda decimales con que se expresan los importes del comprobante en moneda.
// XXX no admite decimales.
func DecimalesMoneda(moneda string) int32 {
	if moneda == MonedaSinMoneda {
		return 0
	}
	return 2
}

// =============================================================================
// c_Exportacion
// =============================================================================

const (
	ExportacionNoAplica       = "01"
	ExportacionDefinitivaA1   = "02"
	ExportacionTemporal       = "03"
	ExportacionDefinitivaOtro = "04"
)

// ValidExportacion claves de exportación válidas.
var ValidExportacion = map[string]bool{
	ExportacionNoAplica: true, ExportacionDefinitivaA1: true, ExportacionTemporal: true, ExportacionDefinitivaOtro: true,
}

// =============================================================================
// c_RegimenFiscal
// Moral: aplica a RFC de 12 caracteres. Fisica: RFC de 13 caracteres.
// =============================================================================

// RegimenFiscal describe a qué tipo de persona aplica cada régimen.
type RegimenFiscal struct {
	Descripcion string
	Fisica      bool
	Moral       bool
}

// RegimenesFiscales catálogo c_RegimenFiscal.
var RegimenesFiscales = map[string]RegimenFiscal{
	"601": {"General de Ley Personas Morales", false, true},
	"603": {"Personas Morales con Fines no Lucrativos", false, true},
	"605": {"Sueldos y Salarios e Ingresos Asimilados a Salarios", true, false},
	"606": {"Arrendamiento", true, false},
	"607": {"Régimen de Enajenación o Adquisición de Bienes", true, false},
	"608": {"Demás ingresos", true, false},
	"610": {"Residentes en el Extranjero sin Establecimiento Permanente en México", true, true},
	"611": {"Ingresos por Dividendos (socios y accionistas)", true, false},
	"612": {"Personas Físicas con Actividades Empresariales y Profesionales", true, false},
	"614": {"Ingresos por intereses", true, false},
	"615": {"Régimen de los ingresos por obtención de premios", true, false},
	"616": {"Sin obligaciones fiscales", true, false},
	"620": {"Sociedades Cooperativas de Producción que optan por diferir sus ingresos", false, true},
	"621": {"Incorporación Fiscal", true, false},
	"622": {"Actividades Agrícolas, Ganaderas, Silvícolas y Pesqueras", false, true},
	"623": {"Opcional para Grupos de Sociedades", false, true},
	"624": {"Coordinados", false, true},
	"625": {"Régimen de las Actividades Empresariales con ingresos a través de Plataformas Tecnológicas", true, false},
	"626": {"Régimen Simplificado de Confianza", true, true},
}

// =============================================================================
// c_UsoCFDI (subconjunto)
// =============================================================================

const (
	UsoAdquisicionMercancias = "G01"
	UsoDevoluciones          = "G02"
	UsoGastosEnGeneral       = "G03"
	UsoSinEfectosFiscales    = "S01"
	UsoPagos                 = "CP01"
	UsoNomina                = "CN01"
)

// ValidUsosCFDI usos de CFDI válidos.
var ValidUsosCFDI = map[string]bool{
	UsoAdquisicionMercancias: true, UsoDevoluciones: true, UsoGastosEnGeneral: true,
	"I01": true, "I02": true, "I03": true, "I04": true, "I05": true, "I06": true, "I07": true, "I08": true,
	"D01": true, "D02": true, "D03": true, "D04": true, "D05": true, "D06": true, "D07": true,
	"D08": true, "D09": true, "D10": true,
	UsoSinEfectosFiscales: true, UsoPagos: true, UsoNomina: true,
}

// =============================================================================
// c_Impuesto, c_TipoFactor, c_ObjetoImp
// =============================================================================

const (
	ImpuestoISR  = "001"
	ImpuestoIVA  = "002"
	ImpuestoIEPS = "003"

	TipoFactorTasa   = "Tasa"
	TipoFactorCuota  = "Cuota"
	TipoFactorExento = "Exento"

	ObjetoImpNo           = "01" // No objeto de impuesto
	ObjetoImpSi           = "02" // Sí objeto de impuesto
	ObjetoImpSiNoObligado = "03" // Sí objeto del impuesto y no obligado al desglose
	ObjetoImpSiNoCausa    = "04" // Sí objeto del impuesto y no causa impuesto
	ObjetoImpSiExento     = "05" // Sí objeto del impuesto, IVA crédito PODEBI
)

// ValidImpuestos claves de impuesto válidas.
var ValidImpuestos = map[string]bool{ImpuestoISR: true, ImpuestoIVA: true, ImpuestoIEPS: true}

// ValidObjetoImp claves ObjetoImp válidas.
var ValidObjetoImp = map[string]bool{
	ObjetoImpNo: true, ObjetoImpSi: true, ObjetoImpSiNoObligado: true, ObjetoImpSiNoCausa: true, ObjetoImpSiExento: true,
}

// TasasIVA tasas de IVA trasladado permitidas (6 decimales, como en el XML).
var TasasIVA = map[string]bool{"0.160000": true, "0.080000": true, "0.000000": true}

// =============================================================================
// c_TipoRelacion
// =============================================================================

const (
	RelacionNotaCredito         = "01"
	RelacionNotaDebito          = "02"
	RelacionDevolucion          = "03"
	RelacionSustitucion         = "04"
	RelacionTraslados           = "05"
	RelacionFacturaPorTraslados = "06"
	RelacionAnticipo            = "07"
)

// ValidTiposRelacion tipos de relación válidos.
var ValidTiposRelacion = map[string]bool{
	RelacionNotaCredito: true, RelacionNotaDebito: true, RelacionDevolucion: true, RelacionSustitucion: true,
	RelacionTraslados: true, RelacionFacturaPorTraslados: true, RelacionAnticipo: true,
}

// =============================================================================
// Motivos de cancelación
// =============================================================================

const (
	MotivoErroresConRelacion = "01" // Comprobante emitido con errores con relación (requiere FolioSustitucion)
	MotivoErroresSinRelacion = "02" // Comprobante emitido con errores sin relación
	MotivoNoSeLlevoACabo     = "03" // No se llevó a cabo la operación
	MotivoOperacionGlobal    = "04" // Operación nominativa relacionada en una factura global
)

// ValidMotivosCancelacion motivos de cancelación válidos.
var ValidMotivosCancelacion = map[string]bool{
	MotivoErroresConRelacion: true, MotivoErroresSinRelacion: true, MotivoNoSeLlevoACabo: true, MotivoOperacionGlobal: true,
}

// =============================================================================
// Unidades y productos de uso frecuente
// =============================================================================

const (
	ClaveUnidadPieza      = "H87"
	ClaveUnidadServicio   = "E48"
	ClaveUnidadActividad  = "ACT"
	ClaveProdServPago     = "84111506" // Servicios de facturación (obligatoria en CFDI de pago)
	ClaveProdServNoExiste = "01010101"
)

// RFC genéricos.
const (
	RFCGenericoNacional   = "XAXX010101000"
	RFCGenericoExtranjero = "XEXX010101000"
)

// Versiones de los estándares generados.
const (
	VersionCFDI  = "4.0"
	VersionPagos = "2.0"
	VersionTFD   = "1.1"
)
