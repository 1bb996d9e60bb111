package compat

import "github.com/example/blood-matching/internal/models"

// Compatible reports whether a donor satisfies a request for scoring
// purposes. Scoring uses exact blood-type equality; the wider ABO/Rh
// matrix below is display-level only and deliberately not consulted here.
func Compatible(request, donor models.BloodType) bool {
	return request == donor
}

// donorsFor lists the donor groups accepted by each recipient group.
var donorsFor = map[models.BloodType][]models.BloodType{
	models.ONeg:  {models.ONeg},
	models.OPos:  {models.ONeg, models.OPos},
	models.ANeg:  {models.ONeg, models.ANeg},
	models.APos:  {models.ONeg, models.OPos, models.ANeg, models.APos},
	models.BNeg:  {models.ONeg, models.BNeg},
	models.BPos:  {models.ONeg, models.OPos, models.BNeg, models.BPos},
	models.ABNeg: {models.ONeg, models.ANeg, models.BNeg, models.ABNeg},
	models.ABPos: {models.ONeg, models.OPos, models.ANeg, models.APos, models.BNeg, models.BPos, models.ABNeg, models.ABPos},
}

// CanDonateTo reports full ABO/Rh compatibility of donor blood for a
// recipient. O- donates to everyone, AB+ receives from everyone.
func CanDonateTo(donor, recipient models.BloodType) bool {
	for _, d := range donorsFor[recipient] {
		if d == donor {
			return true
		}
	}
	return false
}

// CompatibleDonors returns the donor groups a recipient can receive from.
func CompatibleDonors(recipient models.BloodType) []models.BloodType {
	ds := donorsFor[recipient]
	out := make([]models.BloodType, len(ds))
	copy(out, ds)
	return out
}
