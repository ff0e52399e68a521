package sqlgen

import (
	"strings"
)

// BuiltinDDL is the compact schema of the risk dataset, used when the
// warehouse cannot be introspected
const BuiltinDDL = `CREATE TABLE npl_trend(month TEXT,npl REAL,substandard REAL,doubtful REAL,loss REAL);
CREATE TABLE credit_grades(grade TEXT,amount REAL,count INTEGER,pct REAL);
CREATE TABLE sector_exposure(sector TEXT,amount REAL,pct REAL,pd REAL);
CREATE TABLE concentration(name TEXT,x REAL,y REAL,z REAL);
CREATE TABLE npl_summary(total_loan REAL,npl_amount REAL,npl_ratio REAL,substandard REAL,doubtful REAL,loss REAL,provision_amount REAL,provision_ratio REAL,net_npl REAL);
CREATE TABLE pd_lgd_ead(pd REAL,lgd REAL,ead REAL,expected_loss REAL,unexpected_loss REAL,rwa REAL);
CREATE TABLE var_trend(date TEXT,var REAL,pnl REAL,var_limit REAL);
CREATE TABLE stress_scenarios(name TEXT,credit_loss REAL,market_loss REAL,liquidity_loss REAL,total REAL,bis_after REAL);
CREATE TABLE sensitivity(factor TEXT,value REAL,full_mark REAL);
CREATE TABLE var_summary(current REAL,limit_val REAL,utilization REAL,avg_last20 REAL,max_last20 REAL,breach_count30d INTEGER,delta REAL,gamma REAL,vega REAL,rho REAL);
CREATE TABLE lcr_nsfr_trend(month TEXT,lcr REAL,nsfr REAL,hqla REAL,outflow REAL);
CREATE TABLE maturity_gap(bucket TEXT,assets REAL,liabilities REAL,gap REAL);
CREATE TABLE liquidity_buffer(date TEXT,available REAL,required REAL,stress REAL);
CREATE TABLE funding_structure(source TEXT,amount REAL,pct REAL,stability TEXT);
CREATE TABLE lcr_gauge(lcr REAL,nsfr REAL,hqla REAL,net_outflow REAL,level1 REAL,level2a REAL,level2b REAL,lcr_threshold REAL,nsfr_threshold REAL);
CREATE TABLE ncr_trend(month TEXT,ncr REAL,ncr_limit REAL);
CREATE TABLE ncr_summary(current_ncr REAL,ncr_limit REAL,net_operating_capital REAL,total_risk REAL,market_risk REAL,credit_risk REAL,operational_risk REAL,warning_level REAL,target_level REAL,change_from_last_month REAL);
CREATE TABLE risk_composition(name TEXT,value REAL,percentage REAL);`

const promptRules = `Rules:
- ORDER BY month/date for trends
- LIMIT N for TOP-N queries
- ORDER BY col DESC LIMIT 1 for latest value
- Scalar tables (npl_summary, pd_lgd_ead, var_summary, lcr_gauge) have exactly 1 row
- amount unit: 억원 (KRW 100M)`

// SystemPrompt builds the fixed system prompt for a dialect and schema.
// It does not vary between requests so providers can reuse their prompt cache.
func SystemPrompt(dialect, ddl string) string {
	if dialect == "" {
		dialect = "SQLite"
	}
	if strings.TrimSpace(ddl) == "" {
		ddl = BuiltinDDL
	}

	var b strings.Builder
	b.WriteString("You are a ")
	b.WriteString(dialect)
	b.WriteString(" expert. Output only valid ")
	b.WriteString(dialect)
	b.WriteString(" SQL, no explanation.\n")
	b.WriteString("Tables:\n")
	b.WriteString(strings.TrimSpace(ddl))
	b.WriteString("\n")
	b.WriteString(promptRules)
	return b.String()
}

// CleanSQL strips markdown code fences from model output. When fences are
// present the first fenced part that starts with SELECT wins; otherwise the
// trimmed text is returned unchanged.
func CleanSQL(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.Contains(s, "```") {
		return s
	}

	for _, part := range strings.Split(s, "```") {
		part = strings.TrimSpace(part)
		part = strings.TrimSpace(strings.TrimPrefix(part, "sql"))
		if strings.HasPrefix(strings.ToUpper(part), "SELECT") {
			return part
		}
	}
	return s
}
