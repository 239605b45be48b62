package lifecycle

import "fmt"

// XPPerLevel is the experience needed for each level.
const XPPerLevel = 100

// AdvancedChallengeMaster is awarded for finishing an advanced creation task.
const AdvancedChallengeMaster = "Advanced Challenge Master"

// levelUnlocks lists the skills unlocked on reaching each level. Levels
// beyond 7 unlock nothing.
var levelUnlocks = map[int][]string{
	2: {"Basic Analysis", "Problem Identification"},
	3: {"Critical Thinking", "Research Methods"},
	4: {"Creative Solutions", "Collaboration"},
	5: {"Project Planning", "Communication"},
	6: {"Leadership", "Strategic Thinking"},
	7: {"Innovation", "Mentorship"},
}

// LevelForXP returns floor(xp/100)+1.
func LevelForXP(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return xp/XPPerLevel + 1
}

// SkillUnlocks returns the skills unlocked on reaching level.
func SkillUnlocks(level int) []string {
	return append([]string(nil), levelUnlocks[level]...)
}

// LevelAchievement names the achievement for reaching level.
func LevelAchievement(level int) string {
	return fmt.Sprintf("Reached Level %d", level)
}

func appendMissing(dst []string, values ...string) ([]string, []string) {
	var added []string
	for _, v := range values {
		present := false
		for _, d := range dst {
			if d == v {
				present = true
				break
			}
		}
		if !present {
			dst = append(dst, v)
			added = append(added, v)
		}
	}
	return dst, added
}
