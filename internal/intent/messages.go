package intent

import (
	"fmt"
	"strconv"

	"github.com/smukkama/pm25-intent/internal/i18n"
	"github.com/smukkama/pm25-intent/internal/pm25"
)

var (
	resultTemplate = i18n.Text{
		TH: "ค่า PM2.5 ตอนนี้อยู่ที่ %s ไมโครกรัมต่อลูกบาศก์เมตร คุณภาพอากาศอยู่ในระดับ%s",
		EN: "The current PM2.5 level is %s µg/m³. Air quality is %s.",
	}

	locationFailure = i18n.Text{
		TH: "ขออภัย ไม่สามารถระบุตำแหน่งของคุณได้",
		EN: "Sorry, I couldn't determine your location.",
	}

	errorTemplate = i18n.Text{
		TH: "ขออภัย เกิด%s: %s",
		EN: "Sorry, a %s occurred: %s.",
	}

	genericFailure = i18n.Text{
		TH: "ขออภัย ไม่สามารถดึงข้อมูลคุณภาพอากาศได้ในขณะนี้",
		EN: "Sorry, air quality data is unavailable right now.",
	}

	kindText = map[pm25.Kind]i18n.Text{
		pm25.KindNetwork: {TH: "ข้อผิดพลาดด้านเครือข่าย", EN: "network error"},
		pm25.KindData:    {TH: "ข้อผิดพลาดด้านข้อมูล", EN: "data error"},
	}

	reasonText = map[pm25.Reason]i18n.Text{
		pm25.ReasonInvalidURL:    {TH: "ที่อยู่ของบริการไม่ถูกต้อง", EN: "invalid URL"},
		pm25.ReasonBadStatus:     {TH: "เซิร์ฟเวอร์ตอบกลับด้วยข้อผิดพลาด", EN: "server returned an error"},
		pm25.ReasonRequestFailed: {TH: "ไม่สามารถติดต่อเซิร์ฟเวอร์ได้", EN: "request failed"},
		pm25.ReasonParse:         {TH: "ไม่สามารถอ่านข้อมูลที่ได้รับ", EN: "unable to parse response data"},
		pm25.ReasonInvalidType:   {TH: "รูปแบบค่าไม่ถูกต้อง", EN: "value is not a valid type"},
	}
)

// FormatValue renders a concentration with exactly one decimal
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// LocationFailureSentence is returned whenever no coordinate could be obtained
func LocationFailureSentence(l i18n.Locale) string {
	return locationFailure.In(l)
}

// ErrorSentence renders a PM2.5 client failure without exposing diagnostics
func ErrorSentence(l i18n.Locale, e *pm25.Error) string {
	kind, ok := kindText[e.Kind]
	if !ok {
		return genericFailure.In(l)
	}
	reason, ok := reasonText[e.Reason]
	if !ok {
		// data errors stay generic
		reason = reasonText[pm25.ReasonParse]
		if e.Kind == pm25.KindNetwork {
			reason = reasonText[pm25.ReasonRequestFailed]
		}
	}
	return fmt.Sprintf(errorTemplate.In(l), kind.In(l), reason.In(l))
}

// GenericFailureSentence covers failures outside the known taxonomy
func GenericFailureSentence(l i18n.Locale) string {
	return genericFailure.In(l)
}
