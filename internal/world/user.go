package world

import (
	"fmt"

	"rndharness/internal/numeric"
	"rndharness/internal/prng"
)

// Seed offsets for the two user populations.
const (
	TrainUserSeedOffset = 0x100f01
	TestUserSeedOffset  = 0x100f99
)

// Genes holds the six genetic risk scores, each in [0,1].
type Genes struct {
	MTHFR  float64 `json:"mthfr"`
	LCT    float64 `json:"lct"`
	CYP1A2 float64 `json:"cyp1a2"`
	FTO    float64 `json:"fto"`
	TCF7L2 float64 `json:"tcf7l2"`
	LPL    float64 `json:"lpl"`
}

// Vector returns the genes in affinity order.
func (g Genes) Vector() [6]float64 {
	return [6]float64{g.MTHFR, g.LCT, g.CYP1A2, g.FTO, g.TCF7L2, g.LPL}
}

// User is an immutable synthetic profile.
type User struct {
	ID               string  `json:"user_id"`
	Age              int     `json:"age"`
	SexMale          bool    `json:"sex_male"`
	Diabetes         bool    `json:"condition_diabetes"`
	Hypertension     bool    `json:"condition_hypertension"`
	KidneyRisk       bool    `json:"condition_kidney"`
	Pregnancy        bool    `json:"condition_pregnancy"`
	Warfarin         bool    `json:"medication_warfarin"`
	Metformin        bool    `json:"medication_metformin"`
	Statin           bool    `json:"medication_statin"`
	Antihypertensive bool    `json:"medication_antihyper"`
	SeafoodAllergy   bool    `json:"seafood_allergy"`
	GoalEnergy       float64 `json:"goal_energy"`
	GoalSleep        float64 `json:"goal_sleep"`
	GoalMetabolic    float64 `json:"goal_metabolic"`
	Steps            float64 `json:"wearable_steps"`
	SleepHours       float64 `json:"wearable_sleep_hours"`
	RestingHR        float64 `json:"wearable_resting_hr"`
	Glucose          float64 `json:"cgm_glucose"`
	TimeInRange      float64 `json:"cgm_tir"`
	Genes            Genes   `json:"genes"`
	PreZ             float64 `json:"pre_z_score"`
}

// Flag maps a boolean attribute to its 0/1 numeric encoding.
func Flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Goals returns (energy, sleep, metabolic).
func (u User) Goals() [3]float64 {
	return [3]float64{u.GoalEnergy, u.GoalSleep, u.GoalMetabolic}
}

// Conditions returns (diabetes, hypertension, kidney, pregnancy) as 0/1.
func (u User) Conditions() [4]float64 {
	return [4]float64{Flag(u.Diabetes), Flag(u.Hypertension), Flag(u.KidneyRisk), Flag(u.Pregnancy)}
}

// NewUser draws one profile. The draw order is fixed; a draw that is gated on
// another attribute (pregnancy, metformin, antihypertensive) is skipped
// entirely when the gate is closed.
func NewUser(rng *prng.Rand, id string) User {
	u := User{ID: id}
	u.Age = int(numeric.Round(rng.Range(20, 79)))
	u.SexMale = rng.Next() < 0.48
	u.Diabetes = rng.Next() < pick(u.Age > 45, 0.26, 0.09)
	u.Hypertension = rng.Next() < pick(u.Age > 50, 0.31, 0.11)
	u.KidneyRisk = rng.Next() < 0.08
	u.Pregnancy = !u.SexMale && u.Age >= 20 && u.Age <= 44 && rng.Next() < 0.06
	u.Warfarin = rng.Next() < pick(u.Hypertension, 0.16, 0.05)
	u.Metformin = u.Diabetes && rng.Next() < 0.72
	u.Statin = rng.Next() < 0.28
	u.Antihypertensive = u.Hypertension && rng.Next() < 0.74
	u.SeafoodAllergy = rng.Next() < 0.11

	g0, g1, g2 := rng.Next(), rng.Next(), rng.Next()
	total := g0 + g1 + g2
	u.GoalEnergy, u.GoalSleep, u.GoalMetabolic = g0/total, g1/total, g2/total

	u.Steps = numeric.Clamp(rng.Normal(7600, 2200), 1400, 18000)
	u.SleepHours = numeric.Clamp(rng.Normal(6.8, 1.1), 3.8, 9.2)
	u.RestingHR = numeric.Clamp(rng.Normal(70, 8.5), 49, 96)
	u.Glucose = numeric.Clamp(rng.Normal(105+Flag(u.Diabetes)*22, 16), 74, 190)
	u.TimeInRange = numeric.Clamp(rng.Normal(0.79-Flag(u.Diabetes)*0.15, 0.1), 0.32, 0.98)

	u.Genes = Genes{
		MTHFR:  numeric.Clamp(rng.Normal(0.5, 0.22), 0, 1),
		LCT:    numeric.Clamp(rng.Normal(0.5, 0.24), 0, 1),
		CYP1A2: numeric.Clamp(rng.Normal(0.48, 0.23), 0, 1),
		FTO:    numeric.Clamp(rng.Normal(0.52, 0.22), 0, 1),
		TCF7L2: numeric.Clamp(rng.Normal(0.51, 0.23), 0, 1),
		LPL:    numeric.Clamp(rng.Normal(0.5, 0.25), 0, 1),
	}
	u.PreZ = numeric.Clamp(rng.Normal(-0.08+u.GoalMetabolic*-0.06, 0.55), -2.4, 2.4)
	return u
}

// GenerateUsers draws count users from a generator seeded with seed. Ids are
// prefix-000001 and up.
func GenerateUsers(count int, seed uint32, prefix string) []User {
	rng := prng.New(int64(seed))
	users := make([]User, count)
	for i := range users {
		users[i] = NewUser(rng, fmt.Sprintf("%s-%06d", prefix, i+1))
	}
	return users
}

// Populations generates the train and test users for a run seed.
func Populations(seed int64, cfg ProfileConfig) (train, test []User) {
	train = GenerateUsers(cfg.TrainUsers, uint32(seed)^TrainUserSeedOffset, "train")
	test = GenerateUsers(cfg.TestUsers, uint32(seed)^TestUserSeedOffset, "test")
	return train, test
}

func pick(cond bool, a, b float64) float64 {
	if cond {
		return a
	}
	return b
}
