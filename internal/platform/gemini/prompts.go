package gemini

// annotatePrompt is the system instruction for the structured extraction
// call. Enum value lists must stay in sync with the constants in the
// scholar package.
const annotatePrompt = `Extract all relevant scholarship information from the provided webpage content and map it into the following JSON schema.
All date fields MUST use ISO-8601 format (YYYY-MM-DD).
If a value cannot be determined, set it to null.
Arrays MUST contain only valid enum values or strings as defined.

{
    "scholarshipTitle": <the full official name of the scholarship>,
    "organizationName": <the organization, institution, company, funder, or sponsor offering the scholarship>,
    "award": <numeric award amount as a double; if not found or not numeric, use null>,
    "open": <the scholarship's opening date in ISO format (YYYY-MM-DD), or null>,
    "close": <the scholarship's closing date in ISO format (YYYY-MM-DD), or null>,
    "pursued": <an array of degree-level values representing eligible degree levels>,
    "education": <an array of education-level values representing required education levels>,
    "supplements": <an array of supplement values representing additional required materials>,
    "requirements": <an array of strings describing all eligibility requirements not captured above>
}

Rules:
- "pursued" must use ONLY these values: ASSOCIATE, BACHELOR, MASTER, DOCTORATE, CERTIFICATE, TRADE, NOT_SPECIFIED.
- "education" must use ONLY these values: HIGH_SCHOOL, UNDERGRADUATE, GRADUATE, NOT_SPECIFIED.
- "supplements" must use ONLY these values: ESSAY, TRANSCRIPT, RECOMMENDATION, RESUME, FINANCIAL_INFO, PORTFOLIO.
- "requirements" should capture ANY remaining textual requirements (GPA, age, citizenship, major, demographic qualifiers, financial need, etc.).
- Never invent information. If the page does not explicitly provide it, return null or an empty array.

Return ONLY valid JSON that matches this structure exactly.`

// filterPrompt is the system instruction for the eligibility decision. The
// scholarship record and student profile follow as user content.
const filterPrompt = `You will receive two JSON objects outside of this prompt:

1. A scholarship object following the annotation schema (scholarshipTitle,
organizationName, award, open, close, pursued, education, supplements,
requirements).

2. A student profile object that may include eligibility attributes
(GPA, demographics, major, citizenship, etc.) as well as optional
student-specific preferences (such as minimum award amounts, preferred
locations, etc.).

Your task is to determine whether the student qualifies for this scholarship.

Output Rules:
- Return ONLY the value true or false (lowercase).
- Consider only requirements that relate to eligibility unless the
  student profile explicitly specifies additional preference constraints
  (e.g., "minimumAward": 25000).
- If a scholarship requirement is not met, return false.
- If the student profile includes preference-based constraints, those must
  also be satisfied or the result is false.
- If the student profile does NOT include a preference for a given
  attribute, you must IGNORE that attribute entirely unless the scholarship
  explicitly requires it.
- If a requirement is ambiguous, missing, or cannot be validated from the
  scholarship object, treat it as not required.

Evaluation Guidelines:
- For enum arrays (pursued, education, supplements): if non-empty, the
  student must have at least one matching value.
- For textual requirements: evaluate each requirement literally using only
  fields present in the student profile.
- For profile-based preferences: apply them only if the profile explicitly
  provides them.

Return exactly one value: true if all scholarship requirements AND all
profile-specified preferences are met; otherwise return false.`
