package question

import (
	"fmt"
	"strings"

	"github.com/victornm/trivia/internal/domain"
)

type labeledRow struct {
	prompt     string
	choices    [domain.OptionCount]string
	correct    string
	difficulty string
}

var sampleTopics = map[string][]labeledRow{
	"Music": {
		{"Who is known as the 'King of Pop'?", [4]string{"Elvis Presley", "Michael Jackson", "Prince", "Stevie Wonder"}, "B", "Easy"},
		{"Which band sang 'Hey Jude'?", [4]string{"The Rolling Stones", "The Beatles", "Queen", "ABBA"}, "B", "Easy"},
		{"Which instrument has black and white keys?", [4]string{"Guitar", "Violin", "Piano", "Drums"}, "C", "Easy"},
		{"Which singer released 'Shake It Off'?", [4]string{"Ariana Grande", "Taylor Swift", "Katy Perry", "Billie Eilish"}, "B", "Easy"},
		{"Adele's debut album is titled...", [4]string{"17", "18", "19", "21"}, "C", "Medium"},
		{"'Bohemian Rhapsody' was released by which band?", [4]string{"Queen", "Pink Floyd", "Led Zeppelin", "The Who"}, "A", "Medium"},
		{"'Smells Like Teen Spirit' belongs to which band?", [4]string{"Pearl Jam", "Nirvana", "Foo Fighters", "Green Day"}, "B", "Medium"},
		{"Which rapper released the album 'The Marshall Mathers LP'?", [4]string{"Kanye West", "Eminem", "Jay-Z", "Dr. Dre"}, "B", "Medium"},
		{"Who composed 'The Four Seasons'?", [4]string{"Johann Sebastian Bach", "Antonio Vivaldi", "Ludwig van Beethoven", "Franz Schubert"}, "B", "Hard"},
		{"Which producer pioneered the 'Wall of Sound' technique?", [4]string{"Phil Spector", "Brian Eno", "Quincy Jones", "George Martin"}, "A", "Hard"},
		{"'Kind of Blue' is a landmark album by which jazz musician?", [4]string{"John Coltrane", "Miles Davis", "Charles Mingus", "Duke Ellington"}, "B", "Hard"},
		{"Which singer used the stage name 'Ziggy Stardust'?", [4]string{"David Bowie", "Iggy Pop", "Lou Reed", "Morrissey"}, "A", "Hard"},
	},
	"Television": {
		{"'Friends' is primarily set in which city?", [4]string{"Chicago", "New York", "Los Angeles", "Boston"}, "B", "Easy"},
		{"Which show features a yellow family living in Springfield?", [4]string{"Family Guy", "The Simpsons", "South Park", "Bob's Burgers"}, "B", "Easy"},
		{"Which series follows survivors of a plane crash on a mysterious island?", [4]string{"Lost", "The 100", "Manifest", "The Leftovers"}, "A", "Easy"},
		{"Which talk show host is famous for 'Carpool Karaoke'?", [4]string{"Jimmy Fallon", "James Corden", "Jimmy Kimmel", "Stephen Colbert"}, "B", "Easy"},
		{"Walter White is the main character of which series?", [4]string{"Better Call Saul", "The Sopranos", "Breaking Bad", "Ozark"}, "C", "Medium"},
		{"'Winter is Coming' is a motto from which show?", [4]string{"Vikings", "The Witcher", "Game of Thrones", "The Last Kingdom"}, "C", "Medium"},
		{"Which series set in the 1980s features a group of kids in Hawkins, Indiana?", [4]string{"Dark", "Stranger Things", "Chernobyl", "Glow"}, "B", "Medium"},
		{"'Dunder Mifflin' is the fictional paper company in...", [4]string{"Parks and Recreation", "Brooklyn Nine-Nine", "The Office (US)", "Silicon Valley"}, "C", "Medium"},
		{"'Twin Peaks' was co-created by David Lynch and...", [4]string{"Mark Frost", "Chris Carter", "J.J. Abrams", "Damon Lindelof"}, "A", "Hard"},
		{"'Black Mirror' first aired on which network?", [4]string{"Netflix", "Channel 4", "BBC Two", "ITV"}, "B", "Hard"},
		{"Which series holds the record for most Emmy wins for a scripted series?", [4]string{"Game of Thrones", "Frasier", "Saturday Night Live", "The Crown"}, "A", "Hard"},
		{"In which city is 'The Wire' set?", [4]string{"Philadelphia", "Baltimore", "Detroit", "Newark"}, "B", "Hard"},
	},
	"Eurovision": {
		{"Who won Eurovision 2018 with 'Toy'?", [4]string{"Netta (Israel)", "Eleni Foureira (Cyprus)", "Maneskin (Italy)", "Loreen (Sweden)"}, "A", "Easy"},
		{"Which country hosted Eurovision 2022?", [4]string{"France", "Italy", "The Netherlands", "United Kingdom"}, "B", "Easy"},
		{"Which contest is often abbreviated as ESC?", [4]string{"European Song Contest", "Eurovision Song Contest", "Euro Song Competition", "European Sound Championship"}, "B", "Easy"},
		{"Which country is famous for ABBA's 1974 win?", [4]string{"Norway", "Finland", "Sweden", "Denmark"}, "C", "Easy"},
		{"Which country has won Eurovision the most times?", [4]string{"Ireland", "Sweden", "United Kingdom", "France"}, "B", "Medium"},
		{"Maneskin won Eurovision 2021 representing...", [4]string{"Spain", "Italy", "Portugal", "Germany"}, "B", "Medium"},
		{"'Euphoria' won Eurovision 2012 for which artist?", [4]string{"Conchita Wurst", "Loreen", "Alexander Rybak", "Duncan Laurence"}, "B", "Medium"},
		{"Which city hosted Eurovision 2019?", [4]string{"Lisbon", "Tel Aviv", "Rotterdam", "Turin"}, "B", "Medium"},
		{"Ireland achieved a three-peat of wins in which years?", [4]string{"1992-1994", "1993-1995", "1994-1996", "1991-1993"}, "A", "Hard"},
		{"Which act won Eurovision 2022 with 'Stefania'?", [4]string{"Loreen", "Salvador Sobral", "Kalush Orchestra", "Chanel"}, "C", "Hard"},
		{"Which non-winning song from Spain became a hit in 2022?", [4]string{"Brividi", "SloMo", "Stefania", "Snap"}, "B", "Hard"},
		{"Which year introduced the semi-final format?", [4]string{"2000", "2004", "2008", "2010"}, "B", "Hard"},
	},
}

type textRow struct {
	prompt     string
	answers    []string
	difficulty string
}

// General knowledge questions stored answer-first: the first answer is the correct one.
var sampleGeneral = []textRow{
	{"What is the capital of Australia?", []string{"Canberra", "Sydney", "Melbourne", "Perth"}, "Easy"},
	{"How many continents are there?", []string{"7", "5", "6", "8"}, "Easy"},
	{"Which planet is known as the Red Planet?", []string{"Mars", "Venus", "Jupiter", "Mercury"}, "Easy"},
	{"What is the chemical symbol for gold?", []string{"Au", "Ag", "Gd", "Go"}, "Medium"},
	{"Who painted the Mona Lisa?", []string{"Leonardo da Vinci", "Michelangelo", "Raphael", "Donatello"}, "Medium"},
	{"What is the smallest prime number?", []string{"2", "1", "3", "0"}, "Hard"},
}

// SampleQuizzes returns the built-in question set: one quiz per topic, named after the topic in
// lower case, plus a free text "general" quiz.
func SampleQuizzes() (map[string][]domain.Question, error) {
	quizzes := make(map[string][]domain.Question, len(sampleTopics)+1)

	for topic, rows := range sampleTopics {
		key := strings.ToLower(topic)
		for i, r := range rows {
			q, err := FromLabeled(fmt.Sprintf("%s-%02d", key, i+1), r.prompt, r.choices, r.correct, r.difficulty, topic)
			if err != nil {
				return nil, err
			}
			quizzes[key] = append(quizzes[key], q)
		}
	}

	for i, r := range sampleGeneral {
		q, err := FromAnswers(fmt.Sprintf("general-%02d", i+1), r.prompt, r.answers, r.difficulty, "General")
		if err != nil {
			return nil, err
		}
		quizzes["general"] = append(quizzes["general"], q)
	}

	return quizzes, nil
}

// NewSampleBank is a StaticBank loaded with SampleQuizzes.
func NewSampleBank() (*StaticBank, error) {
	quizzes, err := SampleQuizzes()
	if err != nil {
		return nil, err
	}
	return NewStaticBank(quizzes)
}
