package cfdi

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"

	domain "github.com/jhoicas/integraciones-api/internal/domain/cfdi"
)

// SealInfo atributos de sello presentes en el nodo raíz de un XML.
type SealInfo struct {
	Sello         string
	NoCertificado string
	Certificado   string
	Total         string
	EmisorRfc     string
	ReceptorRfc   string
}

func readRoot(xmlBytes []byte) (*etree.Document, *etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, nil, fmt.Errorf("cfdi: parsear XML: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "Comprobante" {
		return nil, nil, fmt.Errorf("cfdi: el documento no tiene raíz cfdi:Comprobante")
	}
	return doc, root, nil
}

func writeDoc(doc *etree.Document) ([]byte, error) {
	var out bytes.Buffer
	if _, err := doc.WriteTo(&out); err != nil {
		return nil, fmt.Errorf("cfdi: serializar XML: %w", err)
	}
	return out.Bytes(), nil
}

// ReadSealInfo lee Sello, NoCertificado, Certificado, Total y los RFC de un XML sellado.
func ReadSealInfo(xmlBytes []byte) (*SealInfo, error) {
	_, root, err := readRoot(xmlBytes)
	if err != nil {
		return nil, err
	}
	info := &SealInfo{
		Sello:         root.SelectAttrValue("Sello", ""),
		NoCertificado: root.SelectAttrValue("NoCertificado", ""),
		Certificado:   root.SelectAttrValue("Certificado", ""),
		Total:         root.SelectAttrValue("Total", ""),
	}
	if e := root.SelectElement("cfdi:Emisor"); e != nil {
		info.EmisorRfc = e.SelectAttrValue("Rfc", "")
	}
	if r := root.SelectElement("cfdi:Receptor"); r != nil {
		info.ReceptorRfc = r.SelectAttrValue("Rfc", "")
	}
	return info, nil
}

// InjectTimbre agrega tfd:TimbreFiscalDigital dentro de cfdi:Complemento (creándolo si no existe,
// antes de cfdi:Addenda). Falla si el XML ya contiene un timbre.
func InjectTimbre(xmlBytes []byte, t *domain.TimbreFiscalDigital) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("cfdi: timbre nulo")
	}
	doc, root, err := readRoot(xmlBytes)
	if err != nil {
		return nil, err
	}
	if root.FindElement("//tfd:TimbreFiscalDigital") != nil {
		return nil, fmt.Errorf("cfdi: el comprobante ya está timbrado")
	}

	comp := root.SelectElement("cfdi:Complemento")
	if comp == nil {
		comp = etree.NewElement("cfdi:Complemento")
		if addenda := root.SelectElement("cfdi:Addenda"); addenda != nil {
			root.InsertChildAt(addenda.Index(), comp)
		} else {
			root.AddChild(comp)
		}
	}
	tfd := comp.CreateElement("tfd:TimbreFiscalDigital")
	for _, a := range TimbreAttrs(t) {
		tfd.CreateAttr(a.Name.Local, a.Value)
	}
	return writeDoc(doc)
}

// ParseTimbre extrae el Timbre Fiscal Digital de un XML timbrado. FechaTimbrado se interpreta en loc
// (UTC si es nil).
func ParseTimbre(xmlBytes []byte, loc *time.Location) (*domain.TimbreFiscalDigital, error) {
	_, root, err := readRoot(xmlBytes)
	if err != nil {
		return nil, err
	}
	el := root.FindElement("//tfd:TimbreFiscalDigital")
	if el == nil {
		return nil, fmt.Errorf("cfdi: el XML no contiene tfd:TimbreFiscalDigital")
	}
	fecha, err := domain.ParseFecha(el.SelectAttrValue("FechaTimbrado", ""), loc)
	if err != nil {
		return nil, fmt.Errorf("cfdi: FechaTimbrado inválida: %w", err)
	}
	t := &domain.TimbreFiscalDigital{
		Version:          el.SelectAttrValue("Version", ""),
		UUID:             el.SelectAttrValue("UUID", ""),
		FechaTimbrado:    fecha,
		RfcProvCertif:    el.SelectAttrValue("RfcProvCertif", ""),
		Leyenda:          el.SelectAttrValue("Leyenda", ""),
		SelloCFD:         el.SelectAttrValue("SelloCFD", ""),
		NoCertificadoSAT: el.SelectAttrValue("NoCertificadoSAT", ""),
		SelloSAT:         el.SelectAttrValue("SelloSAT", ""),
	}
	if t.UUID == "" {
		return nil, fmt.Errorf("cfdi: el timbre no contiene UUID")
	}
	return t, nil
}

// CanonicalHash devuelve el SHA-256 (hex) del XML canonicalizado (C14N). Dos serializaciones
// equivalentes del mismo comprobante producen la misma huella.
func CanonicalHash(xmlBytes []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(xmlBytes))
	dec.Entity = map[string]string{}
	canon, err := c14n.Canonicalize(dec)
	if err != nil {
		return "", fmt.Errorf("cfdi: canonicalizar XML: %w", err)
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}
