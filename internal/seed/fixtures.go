package seed

import "github.com/primcare/dashboard/internal/domain/action"

type eventFixture struct {
	id   string
	kind string
	days int
	desc string
}

type snapshotFixture struct {
	id               string
	daysAgo          float64
	text             string
	requiresRevision bool
	flags            []string
	suggestions      []string
}

type logFixture struct {
	daysAgo     float64
	action      string
	details     string
	description string
}

type actionFixture struct {
	id          string
	kind        string
	description string
	status      string
	createdAgo  float64
	updatedAgo  float64
	log         []logFixture
}

type patientFixture struct {
	id         string
	name       string
	conditions []string
	hcpcs      string
	events     []eventFixture
	snapshots  []snapshotFixture
	actions    []actionFixture
}

// apcmNote is the full care plan that needs revision in the sandbox. The
// review rules are written against its medication and intervention lines.
const apcmNote = `
Patient Profile
        ---------------
        Name: John Smith
        DOB: 1948-02-13
        Medicare ID: 3AG4-TY84-83Z
        Primary Provider: Dr. Amanda Reyes, MD
        Phone: (555) 123-9876
        Address: 102 Cherry Lane, Springfield, IL

        
Chronic Conditions (ICD-10 codes)
        ---------------------------------
        1. Type 2 Diabetes Mellitus – E11.9
        2. Hypertension – I10
        3. Chronic Kidney Disease, Stage 3 – N18.3
        4. Hyperlipidemia – E78.5

        
Current Medications
        -------------------
        - Metformin, 500 mg, Twice daily with food
        - Lisinopril, 10 mg, Once daily
        - Atorvastatin, 20 mg, Once daily at night
        - Furosemide, 40 mg, Once daily

        
Vital Stats / Labs
        ------------------
        - BP: 138/82 (recorded 2025-04-18)
        - HbA1c: 7.6% (checked 2025-03-05)
        - eGFR: 48 mL/min/1.73m²
        - LDL: 110 mg/dL

        
Patient Goals
        -------------
        - Reduce HbA1c to <7.0% by 2025-07-01
        - Monitor BP weekly, keep <130/80
        - Improve daily walking to 30 mins/day by 2025-06-15
        - Maintain eGFR above 45 (ongoing)

        
Patient Preferences / Needs
        ---------------------------
        - Communication preference: Phone and patient portal
        - Cultural considerations: Spanish-speaking caregiver at home
        - Support system: Daughter and part-time home aide

        
Interventions
        -------------
        - Medication reconciliation by Care manager – Monthly
        - BP and glucose self-monitoring check-ins by Care coordinator – Weekly
        - Dietary counseling by Dietitian – Every 2 months
        - Kidney function lab orders (CMP, eGFR) by PCP – Every 3 months
        - Physical activity encouragement by Care manager – Monthly phone check

        
Time Spent on APCM This Month
        ----------------------------
        - 32 minutes
        - 10 min: Phone call
        - 15 min: Care plan update and med review
        - 7 min: Coordination with dietitian
        `

var fixtures = []patientFixture{
	{
		id:         "patient1",
		name:       "John Smith",
		conditions: []string{"Type 2 Diabetes", "Hypertension", "Chronic Kidney Disease", "Hyperlipidemia"},
		hcpcs:      "G0556",
		events: []eventFixture{
			{"event1", "appointment", 14, "Scheduled nephrology follow-up"},
			{"event2", "call", 7, "Monthly diabetes check-in call"},
			{"event3", "lab", -7, "Blood work results - HbA1c: 7.6%, eGFR: 48 mL/min/1.73m²"},
			{"event4", "appointment", -30, "Primary care check-up - BP: 145/90, adjusted medication"},
			{"event5", "diagnosis", -90, "Diagnosed with Chronic Kidney Disease, Stage 3"},
			{"event6", "hospitalization", -120, "Emergency room visit for hypertensive crisis"},
		},
		snapshots: []snapshotFixture{
			{
				id:               "snapshot1",
				daysAgo:          7,
				text:             apcmNote,
				requiresRevision: true,
				flags: []string{
					"Recent lab results show elevated cholesterol levels",
					"Blood pressure medication needs adjustment",
					"Diabetes management plan needs review",
					"Patient reported medication side effects",
				},
				suggestions: []string{
					"Increase statin dosage",
					"Adjust blood pressure medication timing",
					"Add dietary consultation",
					"Schedule follow-up in 2 weeks",
					"Consider alternative diabetes medication",
				},
			},
			{
				id:      "snapshot2",
				daysAgo: 30,
				text:    "Initial care plan established. Patient to monitor blood pressure daily and report any significant changes.",
			},
		},
		actions: []actionFixture{
			{
				id: "action1", kind: "care_plan_call_patient", description: "Follow-up call regarding medication changes",
				status: action.StatusActive, createdAgo: 2, updatedAgo: 1,
				log: []logFixture{
					{2, "call_initiated", "Initial contact with patient", "Call initiated"},
					{1, "medication_confirmation", "Patient acknowledged new schedule", "Patient confirmed understanding of new medication schedule"},
				},
			},
		},
	},
	{
		id:         "patient2",
		name:       "Sarah Johnson",
		conditions: []string{"Asthma", "Anxiety"},
		hcpcs:      "G0557",
		events: []eventFixture{
			{"event1", "appointment", 21, "Scheduled pulmonology follow-up"},
			{"event2", "call", 14, "Bi-weekly asthma check-in call"},
			{"event3", "lab", -5, "Pulmonary function test - FEV1: 85% predicted"},
			{"event4", "hospitalization", -15, "Emergency room visit for severe asthma attack"},
			{"event5", "appointment", -45, "Psychiatry consultation - anxiety management"},
		},
		snapshots: []snapshotFixture{
			{id: "snapshot1", daysAgo: 5, text: "Patient experienced severe asthma attack. Prescribed new inhaler and emergency action plan."},
		},
		actions: []actionFixture{
			{
				id: "action1", kind: "ehr_request_medication_pcp", description: "Request new inhaler prescription",
				status: action.StatusSuccessful, createdAgo: 4, updatedAgo: 3,
				log: []logFixture{
					{4, "request_submitted", "New prescription request sent to PCP", "Medication request submitted"},
					{3, "prescription_approved", "PCP approved new inhaler prescription", "Prescription approved by PCP"},
				},
			},
		},
	},
	{
		id:         "patient3",
		name:       "Michael Brown",
		conditions: []string{"Heart Disease", "High Cholesterol"},
		hcpcs:      "G0558",
		events: []eventFixture{
			{"event1", "appointment", 30, "Scheduled cardiology follow-up"},
			{"event2", "call", 14, "Bi-weekly cardiac check-in call"},
			{"event3", "lab", -3, "Cardiac stress test results - normal exercise tolerance"},
			{"event4", "appointment", -30, "Cardiology follow-up - stable condition"},
			{"event5", "hospitalization", -90, "Hospital admission for chest pain evaluation"},
			{"event6", "diagnosis", -120, "Diagnosed with Coronary Artery Disease"},
		},
		snapshots: []snapshotFixture{
			{id: "snapshot1", daysAgo: 3, text: "Patient showing improvement in cardiac function. Continue current medication regimen and exercise program."},
		},
		actions: []actionFixture{
			{
				id: "action1", kind: "ehr_message_pcp", description: "Send cardiac test results to PCP",
				status: action.StatusFailed, createdAgo: 2, updatedAgo: 1,
				log: []logFixture{
					{2, "message_started", "Started composing message to PCP", "Message composition started"},
					{1, "message_failed", "Technical error prevented message delivery", "Failed to send message - system error"},
				},
			},
			{
				id: "action2", kind: "care_plan_call_patient", description: "Follow-up call regarding medication changes",
				status: action.StatusFailed, createdAgo: 1, updatedAgo: 0.5,
				log: []logFixture{
					{1, "call_attempted", "Attempted to reach patient", "Call attempt initiated"},
					{0.5, "call_failed", "Patient did not answer after multiple attempts", "Call failed - no answer"},
				},
			},
		},
	},
	{
		id:         "patient4",
		name:       "Emily Davis",
		conditions: []string{"Depression", "Anxiety"},
		hcpcs:      "G0556",
		events: []eventFixture{
			{"event1", "appointment", 14, "Scheduled psychiatry follow-up"},
			{"event2", "call", 7, "Weekly mental health check-in call"},
			{"event3", "appointment", -7, "Therapy session - discussing coping strategies"},
			{"event4", "appointment", -30, "Psychiatry consultation - medication adjustment"},
		},
		snapshots: []snapshotFixture{
			{id: "snapshot1", daysAgo: 4, text: "Patient reporting improved mood with current medication. Continue therapy sessions and medication as prescribed."},
		},
		actions: []actionFixture{
			{
				id: "action1", kind: "care_plan_send_patient", description: "Send updated care plan to patient",
				status: action.StatusSuccessful, createdAgo: 3, updatedAgo: 2,
				log: []logFixture{
					{3, "plan_prepared", "Updated care plan document generated", "Care plan prepared"},
					{2, "plan_sent", "Care plan delivered via patient portal", "Care plan sent to patient"},
				},
			},
		},
	},
	{
		id:         "patient5",
		name:       "Robert Wilson",
		conditions: []string{"COPD", "Hypertension"},
		hcpcs:      "G0557",
		events: []eventFixture{
			{"event1", "appointment", 28, "Scheduled pulmonary follow-up"},
			{"event2", "call", 14, "Bi-weekly COPD check-in call"},
			{"event3", "lab", -5, "Blood gas analysis - PaO2: 85 mmHg"},
			{"event4", "hospitalization", -20, "COPD exacerbation requiring hospitalization"},
			{"event5", "appointment", -60, "Pulmonary rehabilitation assessment"},
		},
		snapshots: []snapshotFixture{
			{id: "snapshot1", daysAgo: 6, text: "Patient recovering from COPD exacerbation. Adjust medication dosages and implement new breathing exercise regimen."},
		},
		actions: []actionFixture{
			{
				id: "action1", kind: "ehr_request_referral_pcp", description: "Request pulmonary rehabilitation referral",
				status: action.StatusSuccessful, createdAgo: 5, updatedAgo: 4,
				log: []logFixture{
					{5, "referral_started", "Started pulmonary rehab referral process", "Referral request initiated"},
					{4, "referral_approved", "PCP approved pulmonary rehab referral", "Referral approved"},
				},
			},
		},
	},
	{
		id:         "patient6",
		name:       "Lisa Anderson",
		conditions: []string{"Rheumatoid Arthritis", "Osteoporosis"},
		hcpcs:      "G0558",
		events: []eventFixture{
			{"event1", "appointment", 21, "Scheduled rheumatology follow-up"},
			{"event2", "call", 14, "Bi-weekly pain management check-in call"},
			{"event3", "lab", -7, "Bone density scan - T-score: -2.3"},
			{"event4", "appointment", -30, "Physical therapy evaluation"},
			{"event5", "appointment", -90, "Rheumatology consultation - new diagnosis"},
		},
		snapshots: []snapshotFixture{
			{id: "snapshot1", daysAgo: 2, text: "Patient showing improvement in joint mobility. Continue current medication and physical therapy regimen."},
		},
		actions: []actionFixture{
			{
				id: "action1", kind: "ehr_escalate_task_ma", description: "Escalate physical therapy scheduling",
				status: action.StatusFailed, createdAgo: 1, updatedAgo: 0.5,
				log: []logFixture{
					{1, "escalation_started", "Started escalation process for PT scheduling", "Task escalation initiated"},
					{0.5, "escalation_failed", "No available PT slots found", "Escalation failed - no available slots"},
				},
			},
			{
				id: "action2", kind: "ehr_request_medication_pcp", description: "Request pain medication adjustment",
				status: action.StatusFailed, createdAgo: 0.75, updatedAgo: 0.25,
				log: []logFixture{
					{0.75, "request_started", "Started medication adjustment request", "Medication request initiated"},
					{0.25, "request_failed", "PCP is out of office until next week", "Request failed - PCP unavailable"},
				},
			},
		},
	},
	{
		id:         "patient7",
		name:       "James Taylor",
		conditions: []string{"Type 1 Diabetes", "Hypertension"},
		hcpcs:      "G0557",
		events: []eventFixture{
			{"event1", "appointment", 28, "Scheduled endocrinology follow-up"},
			{"event2", "call", 14, "Bi-weekly diabetes check-in call"},
			{"event3", "lab", -5, "HbA1c test results - 7.2%"},
			{"event4", "appointment", -30, "Endocrinology follow-up - insulin pump adjustment"},
			{"event5", "hospitalization", -60, "Emergency room visit for severe hypoglycemia"},
		},
		snapshots: []snapshotFixture{
			{id: "snapshot1", daysAgo: 1, text: "Patient maintaining good blood sugar control. Continue current insulin regimen and dietary recommendations."},
		},
		actions: []actionFixture{
			{
				id: "action1", kind: "ehr_update_patient", description: "Update patient records with latest HbA1c results",
				status: action.StatusSuccessful, createdAgo: 0.5, updatedAgo: 0.25,
				log: []logFixture{
					{0.5, "update_started", "Started updating patient records", "Record update started"},
					{0.25, "update_completed", "Successfully updated patient records with new data", "Records updated successfully"},
				},
			},
		},
	},
}
