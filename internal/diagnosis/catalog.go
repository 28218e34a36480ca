package diagnosis

import "strings"

// Locale selects the language of procedure names and rationale text.
type Locale string

const (
	LocaleEN Locale = "en"
	LocaleKO Locale = "ko"
)

// ParseLocale normalizes a locale tag, defaulting to English.
func ParseLocale(raw string) Locale {
	tag := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		tag = tag[:i]
	}
	if tag == string(LocaleKO) {
		return LocaleKO
	}
	return LocaleEN
}

// Procedure IDs. They are stable across locales and safe to persist.
const (
	ProcHIFUPremium  = "hifu_premium"
	ProcRFPremium    = "rf_premium"
	ProcHIFUDomestic = "hifu_domestic"
	ProcFatTighten   = "fat_reduction_tightening"
	ProcSkinBooster  = "skin_booster"
	ProcMaintenance  = "ldm_maintenance"
	ProcNeuromod     = "neuromodulator"
)

// Procedure is a catalog entry the rule table can recommend.
type Procedure struct {
	ID        string
	Name      string
	Intensity string
	Reason    string
	// EnergyBased marks high-intensity ultrasound/radiofrequency procedures whose
	// intensity is toned down for sensitive skin.
	EnergyBased bool
}

type fragment int

const (
	fragSeverePremium fragment = iota
	fragSevereBudget
	fragModerate
	fragModerateBooster
	fragPreventive
	fragSensitive
)

// Catalog holds the display text for one locale.
type Catalog struct {
	Locale            Locale
	AdjustedIntensity string
	procedures        map[string]Procedure
	fragments         map[fragment]string
}

func (c Catalog) recommend(id string) Recommendation {
	p := c.procedures[id]
	return Recommendation{
		ID:          p.ID,
		Name:        p.Name,
		Intensity:   p.Intensity,
		Reason:      p.Reason,
		EnergyBased: p.EnergyBased,
	}
}

// Procedure returns the catalog entry for id.
func (c Catalog) Procedure(id string) (Procedure, bool) {
	p, ok := c.procedures[id]
	return p, ok
}

// CatalogFor returns the catalog for a locale, falling back to English.
func CatalogFor(locale Locale) Catalog {
	if locale == LocaleKO {
		return catalogKO
	}
	return catalogEN
}

func procedures(list ...Procedure) map[string]Procedure {
	out := make(map[string]Procedure, len(list))
	for _, p := range list {
		out[p.ID] = p
	}
	return out
}

var catalogEN = Catalog{
	Locale:            LocaleEN,
	AdjustedIntensity: "low intensity / shot count adjustment needed",
	procedures: procedures(
		Procedure{ID: ProcHIFUPremium, Name: "Ulthera (HIFU)", Intensity: "400-600 shots", Reason: "Targets the deep SMAS layer for a strong lifting effect.", EnergyBased: true},
		Procedure{ID: ProcRFPremium, Name: "Thermage FLX (RF)", Intensity: "600 shots", Reason: "Stimulates dermal collagen renewal for skin tightening and finer lines.", EnergyBased: true},
		Procedure{ID: ProcHIFUDomestic, Name: "Shurink Universe / Tensera (domestic HIFU)", Intensity: "600+ shots", Reason: "A lifting effect similar to Ulthera at a more reasonable cost."},
		Procedure{ID: ProcFatTighten, Name: "InMode FX + Forma", Intensity: "3+ sessions", Reason: "Removes unwanted fat (FX) and tightens the skin (Forma) at the same time."},
		Procedure{ID: ProcSkinBooster, Name: "Rejuran Healer / Juvelook (skin booster)", Intensity: "2cc+", Reason: "Improves the skin's inner environment and softens fine lines."},
		Procedure{ID: ProcMaintenance, Name: "LDM water-drop lifting", Intensity: "weekly care", Reason: "Strengthens the skin barrier and keeps elasticity without pain."},
		Procedure{ID: ProcNeuromod, Name: "Botox (wrinkles/jaw)", Intensity: "periodic treatment", Reason: "Prevents expression lines and refines the jawline."},
	),
	fragments: map[fragment]string{
		fragSeverePremium:   "Severe sagging and signs of aging call for high-intensity energy procedures.",
		fragSevereBudget:    "Severe sagging is visible, so with the budget in mind a domestic high-intensity ultrasound procedure is recommended first.",
		fragModerate:        "For moderate sagging with double-chin or deep cheek fat, a combined InMode treatment works well.",
		fragModerateBooster: "A skin booster alongside is recommended to improve texture and fine lines.",
		fragPreventive:      "At an early stage of aging, steady maintenance procedures suit better than aggressive ones.",
		fragSensitive:       "Because the skin is sensitive, strong energy procedures (HIFU/RF) need care and soothing aftercare is essential.",
	},
}

var catalogKO = Catalog{
	Locale:            LocaleKO,
	AdjustedIntensity: "저강도/샷수 조절 필요",
	procedures: procedures(
		Procedure{ID: ProcHIFUPremium, Name: "울쎄라 (HIFU)", Intensity: "400-600샷", Reason: "깊은 근막층(SMAS) 타겟팅으로 강력한 리프팅 효과.", EnergyBased: true},
		Procedure{ID: ProcRFPremium, Name: "써마지 FLX (RF)", Intensity: "600샷", Reason: "진피층 콜라겐 재생 유도, 피부 타이트닝 및 잔주름 개선.", EnergyBased: true},
		Procedure{ID: ProcHIFUDomestic, Name: "슈링크 유니버스/텐쎄라 (국산 HIFU)", Intensity: "600샷 이상", Reason: "울쎄라 대비 합리적인 비용으로 유사한 리프팅 효과."},
		Procedure{ID: ProcFatTighten, Name: "인모드 FX+Forma", Intensity: "3회 이상", Reason: "불필요한 지방 제거(FX) 및 타이트닝(Forma) 동시 효과."},
		Procedure{ID: ProcSkinBooster, Name: "리쥬란 힐러/쥬베룩 (스킨부스터)", Intensity: "2cc 이상", Reason: "피부 속 환경 개선 및 잔주름 완화."},
		Procedure{ID: ProcMaintenance, Name: "LDM 물방울 리프팅", Intensity: "주 1회 관리", Reason: "통증 없이 피부 장벽 강화 및 탄력 유지."},
		Procedure{ID: ProcNeuromod, Name: "보톡스 (주름/턱)", Intensity: "주기적 시술", Reason: "표정 주름 예방 및 턱 라인 정리."},
	),
	fragments: map[fragment]string{
		fragSeverePremium:   "심한 처짐과 노화 징후에는 고강도 에너지 시술이 필수적입니다.",
		fragSevereBudget:    "심한 처짐이 관찰되나, 예산을 고려하여 국산 고강도 초음파 시술을 우선 추천합니다.",
		fragModerate:        "중간 정도의 처짐과 이중턱/심부볼 지방에는 인모드 복합 시술이 효과적입니다.",
		fragModerateBooster: "피부결 및 잔주름 개선을 위해 스킨부스터 병행을 권장합니다.",
		fragPreventive:      "초기 노화 단계에서는 강력한 시술보다는 꾸준한 관리형 시술이 적합합니다.",
		fragSensitive:       "민감성 피부이므로, 강한 에너지 시술(HIFU/RF)은 주의가 필요하며 진정 관리가 필수입니다.",
	},
}
