package agent

// Expert is one persona the router can select. Instructions steer the
// planner's strategy and style; AllowedTools restricts which tools its
// plans may call (an empty list means no tools at all).
type Expert struct {
	ID           string
	Label        string
	Description  string
	Instructions string
	AllowedTools []string
}

// DefaultExpertID is the fallback persona when routing fails or returns an
// unknown id.
const DefaultExpertID = "docs"

// RoutableExpertIDs are the personas the router may hand a turn to.
var RoutableExpertIDs = []string{"docs", "sql", "ops", "security", "review"}

var experts = map[string]Expert{
	"router": {
		ID:          "router",
		Label:       "Router",
		Description: "เลือกผู้เชี่ยวชาญที่เหมาะกับคำถามและกำหนดแนวทางการแก้ปัญหา",
		Instructions: "คุณกำลังทำงานในบทบาท Router: เลือกแนวทางที่เหมาะสมที่สุดและถ้าจำเป็นให้ส่งต่อ (handoff) " +
			"ไปยังผู้เชี่ยวชาญที่เหมาะสม (Docs/SQL/Ops/Security).",
		AllowedTools: []string{},
	},
	"docs": {
		ID:          "docs",
		Label:       "Docs Expert",
		Description: "เชี่ยวชาญการตอบจากเอกสาร/คู่มือ/สถาปัตยกรรมระบบ โดยเน้นอ้างอิงและสรุปเป็นระบบ",
		Instructions: "คุณคือ Docs Expert: ตอบโดยอ้างอิง Docs Context เป็นหลัก, สรุปเป็นหัวข้อ, ใส่ลิงก์/ที่มาเมื่อมี. " +
			"หลีกเลี่ยงการเดาเมื่อไม่มีข้อมูลใน docs.",
		AllowedTools: []string{},
	},
	"sql": {
		ID:          "sql",
		Label:       "SQL Expert",
		Description: "เชี่ยวชาญฐานข้อมูล/ดาต้าดิคชันนารี/การวิเคราะห์ข้อมูลและออกแบบ query",
		Instructions: "คุณคือ SQL Expert: ใช้ DB Dictionary เพื่อตีความ schema, อธิบายตาราง/คอลัมน์ที่เกี่ยวข้อง, " +
			"ถ้าต้องวิเคราะห์ให้ใช้เครื่องมือดึงข้อมูล/วิเคราะห์ก่อนตอบ. แนะนำ query/แนวทางตรวจสอบข้อมูลอย่างเป็นขั้นตอน.",
		AllowedTools: []string{
			"getSalesSummary",
			"getOrderStatusCounts",
			"getOrders",
			"queryAggregate",
			"trendReport",
			"cohortReport",
			"oosReport",
			"analyzeData",
			"executeCode",
		},
	},
	"ops": {
		ID:          "ops",
		Label:       "Ops/DevOps Expert",
		Description: "เชี่ยวชาญงานระบบ, ดีบัก, โครงสร้างโปรเจค, สคริปต์, Docker, การ deploy",
		Instructions: "คุณคือ Ops/DevOps Expert: โฟกัสการทำให้ระบบรันได้จริง, ตรวจ config/env, " +
			"อธิบายขั้นตอนรัน/ดีบักแบบทำตามได้. ถ้าต้องตรวจไฟล์/โค้ดให้ใช้เครื่องมือ readFile และ bash.",
		AllowedTools: []string{"bash", "readFile", "writeFile", "executeCode"},
	},
	"security": {
		ID:          "security",
		Label:       "Security/Governance Expert",
		Description: "เชี่ยวชาญ security, compliance, permissions, audit logs, data privacy สำหรับองค์กร",
		Instructions: "คุณคือ Security/Governance Expert: โฟกัส threat model, data privacy, RBAC/ABAC, audit logging, " +
			"safe tool permissions, prompt injection defense, และแนวทางนำไปใช้ในองค์กร. ให้ checklist และมาตรการที่ทำได้จริง.",
		AllowedTools: []string{"readFile"},
	},
	"review": {
		ID:          "review",
		Label:       "Code Review Expert",
		Description: "รีวิวโค้ด: หา bug/edge cases, ปรับสถาปัตยกรรม, ความปลอดภัย, readability, performance, และ DX",
		Instructions: "คุณคือ Code Review Expert: ให้ feedback แบบ actionable พร้อมเหตุผล, ระบุไฟล์/ฟังก์ชันที่เกี่ยวข้อง, " +
			"เสนอ patch แนวทางแก้, และชี้ความเสี่ยง (security/perf). ถ้าต้องดูโค้ดให้ใช้ readFile/bash. " +
			"หลีกเลี่ยงการเดาเมื่อยังไม่เห็นโค้ด.",
		AllowedTools: []string{"bash", "readFile"},
	},
}

// ExpertByID returns the expert profile for an id.
func ExpertByID(id string) (Expert, bool) {
	e, ok := experts[id]
	return e, ok
}

// IsRoutable reports whether the id is a persona the router may select.
func IsRoutable(id string) bool {
	for _, r := range RoutableExpertIDs {
		if r == id {
			return true
		}
	}
	return false
}
