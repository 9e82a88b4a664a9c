package cluster

import (
	"strings"
)

// Zoom thresholds for the place-name granularity of cluster labels.
const (
	ProvinceMaxZoom = 9
	DistrictMaxZoom = 12
)

var provinceShortNames = map[string]string{
	"서울특별시":   "서울",
	"부산광역시":   "부산",
	"대구광역시":   "대구",
	"인천광역시":   "인천",
	"광주광역시":   "광주",
	"대전광역시":   "대전",
	"울산광역시":   "울산",
	"세종특별자치시": "세종",
	"경기도":     "경기",
	"강원도":     "강원",
	"강원특별자치도": "강원",
	"충청북도":    "충북",
	"충청남도":    "충남",
	"전라북도":    "전북",
	"전북특별자치도": "전북",
	"전라남도":    "전남",
	"경상북도":    "경북",
	"경상남도":    "경남",
	"제주특별자치도": "제주",
}

// ShortProvince returns the customary short form of a province token.
func ShortProvince(token string) string {
	if s, ok := provinceShortNames[token]; ok {
		return s
	}
	return token
}

// PlaceName derives a coarse place name from a Korean road or lot address.
// Low zoom levels yield the province, middle ones the city or district and
// high ones the neighbourhood. It falls back to the next coarser level when
// the address lacks the requested part.
func PlaceName(address string, zoom int) string {
	tokens := strings.Fields(address)
	if len(tokens) == 0 {
		return ""
	}

	province := ShortProvince(tokens[0])
	if zoom <= ProvinceMaxZoom {
		return province
	}

	district := ""
	for _, tok := range tokens[1:] {
		if hasAnySuffix(tok, "시", "군", "구") {
			district = tok
			// "수원시 장안구": keep the city, it is the coarser unit
			break
		}
	}
	if zoom <= DistrictMaxZoom {
		if district != "" {
			return district
		}
		return province
	}

	for _, tok := range tokens[1:] {
		if hasAnySuffix(tok, "동", "읍", "면", "리", "가") {
			return tok
		}
	}
	if district != "" {
		return district
	}
	return province
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) && len(s) > len(suf) {
			return true
		}
	}
	return false
}
